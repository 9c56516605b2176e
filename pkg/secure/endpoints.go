package secure

// Endpoint is one paginated collection of the security-analytics API
type Endpoint struct {
	// Name is used in log records
	Name string
	// Path is appended to the base URL
	Path string
	// Prefix names the page files, optionally behind store_filename
	Prefix string
}

var (
	// SecureEvents lists runtime security events
	SecureEvents = Endpoint{
		Name:   "Secure events",
		Path:   "api/v1/secureEvents",
		Prefix: "list_events",
	}

	// ActivityAuditEvents lists activity audit events
	ActivityAuditEvents = Endpoint{
		Name:   "audit activity events",
		Path:   "api/v1/activityAudit/events",
		Prefix: "audit_events",
	}
)

// URI returns the endpoint URL under baseURL, which is expected to end in "/"
func (e Endpoint) URI(baseURL string) string {
	return baseURL + e.Path
}

// FilePrefix returns "<filename>_<prefix>", or the bare prefix when no
// filename is configured
func (e Endpoint) FilePrefix(filename string) string {
	if filename == "" {
		return e.Prefix
	}
	return filename + "_" + e.Prefix
}
