package models

// Methods lists the cipher names accepted by the supported backends.
var Methods = []string{
	"aes-128-gcm",
	"aes-192-gcm",
	"aes-256-gcm",
	"chacha20-ietf-poly1305",
	"xchacha20-ietf-poly1305",
	"aes-128-cfb",
	"aes-192-cfb",
	"aes-256-cfb",
	"aes-128-ctr",
	"aes-192-ctr",
	"aes-256-ctr",
	"bf-cfb",
	"camellia-128-cfb",
	"camellia-192-cfb",
	"camellia-256-cfb",
	"cast5-cfb",
	"chacha20",
	"chacha20-ietf",
	"des-cfb",
	"idea-cfb",
	"rc2-cfb",
	"rc4",
	"rc4-md5",
	"salsa20",
	"seed-cfb",
	"table",
}

var methodSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Methods))
	for _, name := range Methods {
		m[name] = struct{}{}
	}
	return m
}()

// IsSupportedMethod reports whether name is a known cipher.
func IsSupportedMethod(name string) bool {
	_, ok := methodSet[name]
	return ok
}
