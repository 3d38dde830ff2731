package weather

import (
	"fmt"
	"regexp"
	"strconv"
)

// windGroupRe matches the METAR wind group, e.g. "08013KT", "24006G18KT",
// "VRB02MPS".
var windGroupRe = regexp.MustCompile(`^(\d{3}|VRB)(\d{2,3})(G\d{2,3})?(KT|MPS)?$`)

// Wind is a decoded METAR wind group.
type Wind struct {
	Degrees   int     // 0-360, meaningless when Variable
	Variable  bool    // VRB direction
	Direction string  // Chinese compass name
	Speed     int     // in the reported unit
	Gust      int     // gust speed, 0 when absent
	Knots     float64 // speed converted to knots
	KMH       float64 // speed converted to km/h
	MPS       float64 // speed converted to m/s
	Unit      string  // Chinese unit name of the reported speed
}

// ParseWind decodes one wind group. A missing unit suffix means knots.
func ParseWind(group string) (Wind, error) {
	m := windGroupRe.FindStringSubmatch(group)
	if m == nil {
		return Wind{}, fmt.Errorf("unparseable wind group: %q", group)
	}

	w := Wind{}
	if m[1] == "VRB" {
		w.Variable = true
		w.Direction = "风向不定"
	} else {
		w.Degrees, _ = strconv.Atoi(m[1])
		w.Direction = directionText(w.Degrees)
	}
	w.Speed, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		w.Gust, _ = strconv.Atoi(m[3][1:])
	}

	switch m[4] {
	case "MPS":
		w.Unit = "米每秒"
		w.MPS = float64(w.Speed)
		w.KMH = float64(w.Speed) * 3.6
		w.Knots = float64(w.Speed) / 0.514444
	default:
		w.Unit = "节"
		w.Knots = float64(w.Speed)
		w.KMH = float64(w.Speed) * 1.852
		w.MPS = float64(w.Speed) * 0.514444
	}
	return w, nil
}

// directionText maps a bearing onto the Chinese compass name.
func directionText(degrees int) string {
	switch {
	case degrees < 0 || degrees > 360:
		return "未知风向"
	case degrees <= 22 || degrees >= 338:
		return "北风"
	case degrees <= 67:
		return "东北风"
	case degrees <= 112:
		return "东风"
	case degrees <= 157:
		return "东南风"
	case degrees <= 202:
		return "南风"
	case degrees <= 247:
		return "西南风"
	case degrees <= 292:
		return "西风"
	default:
		return "西北风"
	}
}
