package rudder

// render turns a terminal reference into the caller-visible outcome: an
// Endpoint, or a *Failure carrying the call's trace. Context variables are
// read-only from here on; an unset binding reads as absent.
func (s *scope) render(ref int64) (*Endpoint, error) {
	s.rendering = true

	if ref == NoMatchRef {
		return nil, &Failure{
			Kind:    NoRuleMatched,
			Message: "no rules matched the provided parameters",
			Trace:   s.trace,
		}
	}

	index, ok := RefResult(ref)
	if !ok || index >= len(s.engine.model.Results) {
		return nil, malformed("terminal reference %d does not address a result", ref)
	}
	r := &s.engine.model.Results[index]

	switch r.Kind {
	case ErrorResult:
		return nil, s.renderError(r)
	case EndpointResult:
		return s.renderEndpoint(r)
	default:
		return nil, malformed("result %d has unknown kind %d", index, r.Kind)
	}
}

func (s *scope) renderError(r *ResultSpec) error {
	msg, err := s.eval(r.Msg)
	if err != nil {
		return err
	}
	str, ok := msg.Str()
	if !ok {
		return malformed("error message %s did not evaluate to a string", r.Msg)
	}
	return &Failure{Kind: RuleDefined, Message: str, Trace: s.trace}
}

func (s *scope) renderEndpoint(r *ResultSpec) (*Endpoint, error) {
	urlVal, err := s.eval(r.URL)
	if err != nil {
		return nil, err
	}
	url, ok := urlVal.Str()
	if !ok {
		return nil, malformed("endpoint url %s did not evaluate to a string", r.URL)
	}

	ep := Endpoint{URL: url}

	if len(r.Headers) > 0 {
		ep.Headers = make(map[string][]string, len(r.Headers))
		for name, exprs := range r.Headers {
			var values []string
			for _, e := range exprs {
				v, err := s.eval(e)
				if err != nil {
					return nil, err
				}
				if !v.Present() {
					continue
				}
				str, isStr := coerceString(v)
				if !isStr {
					return nil, malformed("header %s value %s is not string-coercible", name, e)
				}
				values = append(values, str)
			}
			if len(values) > 0 {
				ep.Headers[name] = values
			}
		}
	}

	if len(r.Properties) > 0 {
		ep.Properties = make(map[string]Value, len(r.Properties))
		for name, e := range r.Properties {
			v, err := s.eval(e)
			if err != nil {
				return nil, err
			}
			if !v.Present() {
				continue
			}
			ep.Properties[name] = v
		}
	}

	return &ep, nil
}
