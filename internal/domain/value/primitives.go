package value

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

func init() {
	register(TypeString, codec{
		parse:     func(s string) (any, error) { return s, nil },
		canonical: func(p any) string { return p.(string) },
		equal:     func(a, b any) bool { return a.(string) == b.(string) },
		less:      func(a, b any) (bool, bool) { return a.(string) < b.(string), true },
	})

	register(TypeBoolean, codec{
		parse: func(s string) (any, error) {
			switch s {
			case "true", "1":
				return true, nil
			case "false", "0":
				return false, nil
			default:
				return nil, fmt.Errorf("invalid boolean literal %q", s)
			}
		},
		canonical: func(p any) string { return strconv.FormatBool(p.(bool)) },
		equal:     func(a, b any) bool { return a.(bool) == b.(bool) },
	})

	register(TypeInteger, codec{
		parse: func(s string) (any, error) { return strconv.ParseInt(strings.TrimSpace(s), 10, 64) },
		canonical: func(p any) string { return strconv.FormatInt(p.(int64), 10) },
		equal:     func(a, b any) bool { return a.(int64) == b.(int64) },
		less:      func(a, b any) (bool, bool) { return a.(int64) < b.(int64), true },
	})

	register(TypeDouble, codec{
		parse: func(s string) (any, error) { return strconv.ParseFloat(strings.TrimSpace(s), 64) },
		canonical: func(p any) string {
			f := p.(float64)
			switch {
			case f != f:
				return "NaN"
			case f > 1.7976931348623157e+308:
				return "INF"
			case f < -1.7976931348623157e+308:
				return "-INF"
			}
			s := strconv.FormatFloat(f, 'g', -1, 64)
			return s
		},
		equal: func(a, b any) bool { return a.(float64) == b.(float64) },
		less:  func(a, b any) (bool, bool) { return a.(float64) < b.(float64), true },
	})

	register(TypeAnyURI, codec{
		parse:     func(s string) (any, error) { return s, nil },
		canonical: func(p any) string { return p.(string) },
		equal:     func(a, b any) bool { return a.(string) == b.(string) },
	})

	register(TypeHexBinary, codec{
		parse: func(s string) (any, error) { return hex.DecodeString(strings.TrimSpace(s)) },
		canonical: func(p any) string {
			return strings.ToUpper(hex.EncodeToString(p.([]byte)))
		},
		equal: func(a, b any) bool { return string(a.([]byte)) == string(b.([]byte)) },
	})

	register(TypeBase64Binary, codec{
		parse: func(s string) (any, error) { return base64.StdEncoding.DecodeString(strings.TrimSpace(s)) },
		canonical: func(p any) string {
			return base64.StdEncoding.EncodeToString(p.([]byte))
		},
		equal: func(a, b any) bool { return string(a.([]byte)) == string(b.([]byte)) },
	})

	register(TypeRFC822Name, codec{
		parse:     parseRFC822Name,
		canonical: func(p any) string { return p.(rfc822Name).canonical() },
		equal:     func(a, b any) bool { return a.(rfc822Name) == b.(rfc822Name) },
	})

	register(TypeX500Name, codec{
		parse:     func(s string) (any, error) { return strings.TrimSpace(s), nil },
		canonical: func(p any) string { return p.(string) },
		equal:     func(a, b any) bool { return a.(string) == b.(string) },
	})

	register(TypeIPAddress, codec{
		parse:     parseIPAddress,
		canonical: func(p any) string { return p.(ipAddress).String() },
		equal:     func(a, b any) bool { return a.(ipAddress) == b.(ipAddress) },
	})

	register(TypeDNSName, codec{
		parse:     parseDNSName,
		canonical: func(p any) string { return p.(dnsName).String() },
		equal:     func(a, b any) bool { return a.(dnsName) == b.(dnsName) },
	})

	register(TypeDate, codec{
		parse:     func(s string) (any, error) { return time.Parse("2006-01-02", strings.TrimSpace(s)) },
		canonical: func(p any) string { return p.(time.Time).Format("2006-01-02") },
		equal:     func(a, b any) bool { return a.(time.Time).Equal(b.(time.Time)) },
		less:      func(a, b any) (bool, bool) { return a.(time.Time).Before(b.(time.Time)), true },
	})

	register(TypeTime, codec{
		parse:     func(s string) (any, error) { return time.Parse("15:04:05", strings.TrimSpace(s)) },
		canonical: func(p any) string { return p.(time.Time).Format("15:04:05") },
		equal:     func(a, b any) bool { return a.(time.Time).Equal(b.(time.Time)) },
		less:      func(a, b any) (bool, bool) { return a.(time.Time).Before(b.(time.Time)), true },
	})

	register(TypeDateTime, codec{
		parse: parseDateTime,
		canonical: func(p any) string { return p.(time.Time).Format(time.RFC3339Nano) },
		equal:     func(a, b any) bool { return a.(time.Time).Equal(b.(time.Time)) },
		less:      func(a, b any) (bool, bool) { return a.(time.Time).Before(b.(time.Time)), true },
	})

	register(TypeDayTimeDuration, codec{
		parse:     parseDayTimeDuration,
		canonical: func(p any) string { return p.(dayTimeDuration).String() },
		equal:     func(a, b any) bool { return a.(dayTimeDuration) == b.(dayTimeDuration) },
		less: func(a, b any) (bool, bool) {
			return a.(dayTimeDuration).nanos() < b.(dayTimeDuration).nanos(), true
		},
	})

	register(TypeYearMonthDuration, codec{
		parse:     parseYearMonthDuration,
		canonical: func(p any) string { return p.(yearMonthDuration).String() },
		equal:     func(a, b any) bool { return a.(yearMonthDuration) == b.(yearMonthDuration) },
		less: func(a, b any) (bool, bool) {
			return a.(yearMonthDuration).months() < b.(yearMonthDuration).months(), true
		},
	})
}

func parseDateTime(s string) (any, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("invalid dateTime literal %q", s)
}

// rfc822Name is a (local-part, domain) email-style name. Equality is
// case-insensitive on the domain, case-sensitive on the local part, per
// XACML §B.10; the datatype defines no ordering.
type rfc822Name struct{ local, domain string }

func parseRFC822Name(s string) (any, error) {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return nil, fmt.Errorf("invalid rfc822Name %q: missing '@'", s)
	}
	return rfc822Name{local: s[:at], domain: strings.ToLower(s[at+1:])}, nil
}

func (n rfc822Name) canonical() string { return n.local + "@" + n.domain }

// ipAddress holds a parsed IP plus optional prefix mask and port, canonicalized
// per XACML §B.14.
type ipAddress struct {
	ip   string
	mask string
	port string
}

func parseIPAddress(s string) (any, error) {
	s = strings.TrimSpace(s)
	rest := s
	port := ""
	if i := strings.LastIndex(rest, ":"); i >= 0 && !strings.Contains(rest[i:], "/") && strings.Count(rest, ":") == 1 {
		port = rest[i+1:]
		rest = rest[:i]
	}
	mask := ""
	if i := strings.Index(rest, "/"); i >= 0 {
		mask = rest[i+1:]
		rest = rest[:i]
	}
	ip := net.ParseIP(rest)
	if ip == nil {
		return nil, fmt.Errorf("invalid ipAddress %q", s)
	}
	return ipAddress{ip: ip.String(), mask: mask, port: port}, nil
}

func (a ipAddress) String() string {
	s := a.ip
	if a.mask != "" {
		s += "/" + a.mask
	}
	if a.port != "" {
		s += ":" + a.port
	}
	return s
}

// dnsName holds a hostname plus optional port range, canonicalized to
// lower-case per XACML §B.15.
type dnsName struct {
	host string
	port string
}

func parseDNSName(s string) (any, error) {
	s = strings.TrimSpace(s)
	host, port, _ := strings.Cut(s, ":")
	return dnsName{host: strings.ToLower(host), port: port}, nil
}

func (d dnsName) String() string {
	if d.port == "" {
		return d.host
	}
	return d.host + ":" + d.port
}
