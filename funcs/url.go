package funcs

import (
	"net"
	"net/url"
	"strings"

	"github.com/rudder-engine/rudder"
)

// parseURL parses the value into a URL descriptor with the fields scheme,
// authority, path, normalizedPath (the path with guaranteed leading and
// trailing slashes) and isIp (whether the authority is an IPv4 address or
// a bracketed IPv6 address). Values that do not parse, carry a query
// string, or use a scheme other than http/https yield the absent value.
func parseURL(args []rudder.Value) (rudder.Value, error) {
	if err := arity(args, 1); err != nil {
		return rudder.Absent(), err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return rudder.Absent(), err
	}

	u, parseErr := url.Parse(s)
	if parseErr != nil {
		return rudder.Absent(), nil
	}
	if u.RawQuery != "" || u.ForceQuery {
		return rudder.Absent(), nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return rudder.Absent(), nil
	}
	if u.Host == "" {
		return rudder.Absent(), nil
	}

	return rudder.AttrsVal("url", map[string]rudder.Value{
		"scheme":         rudder.StringVal(u.Scheme),
		"authority":      rudder.StringVal(u.Host),
		"path":           rudder.StringVal(u.Path),
		"normalizedPath": rudder.StringVal(normalizePath(u.Path)),
		"isIp":           rudder.BoolVal(authorityIsIP(u.Host)),
	}), nil
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path = path + "/"
	}
	return path
}

func authorityIsIP(host string) bool {
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return net.ParseIP(host[1:len(host)-1]) != nil
	}
	// Strip a port if one is present.
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() != nil
}
