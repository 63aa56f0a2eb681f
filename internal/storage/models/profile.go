package models

import (
	"net"
	"strconv"
	"strings"

	pkgerrors "shadowdeck/pkg/errors"
)

// Defaults applied to new and imported profiles.
const (
	DefaultLocalAddr = "127.0.0.1"
	DefaultLocalPort = "1080"
	DefaultTimeout   = "600"
	DefaultMethod    = "aes-256-cfb"
)

// Profile is a named shadowsocks connection configuration.
// Ports and timeout are kept as strings because they are edited as text.
type Profile struct {
	Name       string `json:"name"`
	Server     string `json:"server"`
	ServerPort string `json:"server_port"`
	Password   string `json:"password"`
	LocalAddr  string `json:"local_addr"`
	LocalPort  string `json:"local_port"`
	Method     string `json:"method"`
	Timeout    string `json:"timeout"`
}

// NewProfile returns a blank profile with local defaults filled in.
func NewProfile(name string) Profile {
	return Profile{
		Name:      name,
		LocalAddr: DefaultLocalAddr,
		LocalPort: DefaultLocalPort,
		Method:    DefaultMethod,
		Timeout:   DefaultTimeout,
	}
}

// Field identifies an editable profile field.
type Field string

const (
	FieldName       Field = "name"
	FieldServer     Field = "server"
	FieldServerPort Field = "server_port"
	FieldPassword   Field = "password"
	FieldLocalAddr  Field = "local_addr"
	FieldLocalPort  Field = "local_port"
	FieldMethod     Field = "method"
	FieldTimeout    Field = "timeout"
)

// Fields lists the editable fields in display order.
var Fields = []Field{
	FieldName, FieldServer, FieldServerPort, FieldPassword,
	FieldLocalAddr, FieldLocalPort, FieldMethod, FieldTimeout,
}

// ParseField maps a field name (dashes or underscores) to a Field.
func ParseField(s string) (Field, bool) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, f := range Fields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Get returns the value of f.
func (p *Profile) Get(f Field) string {
	switch f {
	case FieldName:
		return p.Name
	case FieldServer:
		return p.Server
	case FieldServerPort:
		return p.ServerPort
	case FieldPassword:
		return p.Password
	case FieldLocalAddr:
		return p.LocalAddr
	case FieldLocalPort:
		return p.LocalPort
	case FieldMethod:
		return p.Method
	case FieldTimeout:
		return p.Timeout
	}
	return ""
}

// Set assigns v to f. It reports false for an unknown field.
func (p *Profile) Set(f Field, v string) bool {
	switch f {
	case FieldName:
		p.Name = v
	case FieldServer:
		p.Server = v
	case FieldServerPort:
		p.ServerPort = v
	case FieldPassword:
		p.Password = v
	case FieldLocalAddr:
		p.LocalAddr = v
	case FieldLocalPort:
		p.LocalPort = v
	case FieldMethod:
		p.Method = v
	case FieldTimeout:
		p.Timeout = v
	default:
		return false
	}
	return true
}

// TimeoutSeconds returns the timeout as an integer, or the default when unset.
func (p *Profile) TimeoutSeconds() int {
	if n, err := strconv.Atoi(strings.TrimSpace(p.Timeout)); err == nil && n > 0 {
		return n
	}
	n, _ := strconv.Atoi(DefaultTimeout)
	return n
}

// Validate checks the fields a backend needs to launch. It does not look at
// the backend executable; the store adds that check.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Server) == "" {
		return &pkgerrors.ValidationError{Field: string(FieldServer), Reason: "must not be empty"}
	}
	if !ValidPort(p.ServerPort) {
		return &pkgerrors.ValidationError{Field: string(FieldServerPort), Value: p.ServerPort, Reason: "must be a port between 1 and 65535"}
	}
	if !ValidIPv4(p.LocalAddr) {
		return &pkgerrors.ValidationError{Field: string(FieldLocalAddr), Value: p.LocalAddr, Reason: "must be an IPv4 address"}
	}
	if !ValidPort(p.LocalPort) {
		return &pkgerrors.ValidationError{Field: string(FieldLocalPort), Value: p.LocalPort, Reason: "must be a port between 1 and 65535"}
	}
	if !IsSupportedMethod(p.Method) {
		return &pkgerrors.ValidationError{Field: string(FieldMethod), Value: p.Method, Reason: "unsupported cipher"}
	}
	if p.Timeout != "" {
		if n, err := strconv.Atoi(p.Timeout); err != nil || n < 0 {
			return &pkgerrors.ValidationError{Field: string(FieldTimeout), Value: p.Timeout, Reason: "must be a non-negative integer"}
		}
	}
	return nil
}

// ValidPort reports whether s is a decimal port number in 1-65535.
// Surrounding whitespace is rejected because the value is passed to the
// backend verbatim.
func ValidPort(s string) bool {
	n, err := strconv.ParseUint(s, 10, 16)
	return err == nil && n >= 1
}

// ValidIPv4 reports whether s is a dotted-quad IPv4 address.
func ValidIPv4(s string) bool {
	if strings.Count(s, ".") != 3 {
		return false
	}
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
