package transport

// Constants for default server configuration.
const (
	// DefaultServerPort is the default port the server listens on.
	DefaultServerPort = ":5000"
	// DefaultServerURL is the default URL for the server.
	DefaultServerURL = "http://localhost:5000"
)

// Multipart part names used by /submit-form.
const (
	// FilesPart carries every general attachment.
	FilesPart = "files"
	// POAFilePart carries the power-of-attorney document.
	POAFilePart = "poaFile"

	CaptchaSessionIDField = "captchaSessionId"
	CaptchaCodeField      = "captchaCode"
)

// IsCaptchaField reports whether a form field belongs to the captcha pair.
func IsCaptchaField(name string) bool {
	return name == CaptchaSessionIDField || name == CaptchaCodeField
}
