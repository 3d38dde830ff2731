package flights

import (
	"strings"
	"time"
)

// FilterOptions is the option bag consumed by the filter pipeline. Every
// field is optional; an unset field disables its predicate.
type FilterOptions struct {
	Alliance       string
	AircraftModels []string
	AirlinesCodes  []string
	Airlines       string
	FlightNo       string
	Airport        string
	Departure      bool      // which end Airport is matched against
	After          time.Time // drop flights scheduled before this instant
}

// FilterOptionsFrom derives filter options from a query form. The After
// predicate is left unset; sources that window by time fill it in themselves.
func FilterOptionsFrom(form QueryFlightForm, departure bool) FilterOptions {
	return FilterOptions{
		Alliance:       form.Alliance,
		AircraftModels: form.AircraftModels,
		AirlinesCodes:  form.AirlinesCodes,
		Airlines:       form.Airlines,
		FlightNo:       form.FlightNo,
		Airport:        form.Airport,
		Departure:      departure,
	}
}

// Pipeline applies the post-fetch filters in a fixed order. It is pure and
// stateless: applying it per page or once over the accumulated set yields
// the same records, and reapplying it is a no-op.
type Pipeline struct {
	opts     FilterOptions
	alliance string // canonical, resolved at construction
	models   map[string]struct{}
	carriers map[string]struct{}
}

// NewPipeline validates the options and builds a pipeline. An unrecognized
// alliance name fails here, before any page is fetched.
func NewPipeline(opts FilterOptions) (*Pipeline, error) {
	p := &Pipeline{opts: opts}
	if opts.Alliance != "" {
		name, err := NormalizeAllianceName(opts.Alliance)
		if err != nil {
			return nil, err
		}
		p.alliance = name
	}
	if len(opts.AircraftModels) > 0 {
		p.models = make(map[string]struct{}, len(opts.AircraftModels))
		for _, m := range opts.AircraftModels {
			p.models[strings.ToUpper(strings.TrimSpace(m))] = struct{}{}
		}
	}
	if len(opts.AirlinesCodes) > 0 {
		p.carriers = make(map[string]struct{}, len(opts.AirlinesCodes))
		for _, c := range opts.AirlinesCodes {
			p.carriers[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
		}
	}
	return p, nil
}

// Apply runs the filters over records and returns the survivors in order.
func (p *Pipeline) Apply(records []FlightRecord) []FlightRecord {
	out := make([]FlightRecord, 0, len(records))
	for _, r := range records {
		if p.keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (p *Pipeline) keep(r FlightRecord) bool {
	// A parser may hand back a zero row for things like slave codeshare
	// entries; those never reach presentation.
	if r.FlightNo == "" {
		return false
	}
	if p.alliance != "" && CarrierAlliance(r.CarrierCode()) != p.alliance {
		return false
	}
	if p.models != nil {
		if _, ok := p.models[strings.ToUpper(r.AircraftModel)]; !ok {
			return false
		}
	}
	if p.carriers != nil {
		if _, ok := p.carriers[r.CarrierCode()]; !ok {
			return false
		}
	}
	if p.opts.Airlines != "" && !strings.Contains(r.Airlines, p.opts.Airlines) {
		return false
	}
	if p.opts.FlightNo != "" &&
		!strings.Contains(strings.ToUpper(r.FlightNo), strings.ToUpper(p.opts.FlightNo)) {
		return false
	}
	if p.opts.Airport != "" && !p.matchAirport(r) {
		return false
	}
	if !p.opts.After.IsZero() && !r.IsAfter(p.opts.After, p.opts.Departure) {
		return false
	}
	return true
}

// matchAirport matches the other-end airport: substring on the display name,
// or exact case-insensitive match on the IATA code.
func (p *Pipeline) matchAirport(r FlightRecord) bool {
	name, code := r.DepAirport, r.DepAirportCode
	if p.opts.Departure {
		name, code = r.ArrAirport, r.ArrAirportCode
	}
	if strings.Contains(name, p.opts.Airport) {
		return true
	}
	return code != "" && strings.EqualFold(code, p.opts.Airport)
}
