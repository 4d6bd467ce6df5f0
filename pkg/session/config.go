package session

import "time"

// Config holds session security configuration.
type Config struct {
	// CookieName is the name of the session cookie, distinct from any
	// generic application cookie (default: "sguard")
	CookieName string `env:"SESSIONGUARD_COOKIE_NAME" envDefault:"sguard" yaml:"cookie_name"`

	// SecureCookies enables the Secure flag on session cookies
	SecureCookies bool `env:"SESSIONGUARD_SECURE_COOKIES" envDefault:"false" yaml:"secure_cookies"`

	AnonIdleTimeout time.Duration `env:"SESSIONGUARD_ANON_IDLE_TIMEOUT" envDefault:"30m" yaml:"anon_idle_timeout"`
	AnonMaxLifetime time.Duration `env:"SESSIONGUARD_ANON_MAX_LIFETIME" envDefault:"24h" yaml:"anon_max_lifetime"`

	AuthIdleTimeout time.Duration `env:"SESSIONGUARD_AUTH_IDLE_TIMEOUT" envDefault:"2h" yaml:"auth_idle_timeout"`
	AuthMaxLifetime time.Duration `env:"SESSIONGUARD_AUTH_MAX_LIFETIME" envDefault:"720h" yaml:"auth_max_lifetime"`

	// Regeneration intervals by trigger, consulted in descending priority:
	// a risk score of ten or more regenerates immediately regardless of
	// elapsed time.
	SuspiciousInterval      time.Duration `env:"SESSIONGUARD_SUSPICIOUS_INTERVAL" envDefault:"60s" yaml:"suspicious_interval"`
	AdminInterval           time.Duration `env:"SESSIONGUARD_ADMIN_INTERVAL" envDefault:"180s" yaml:"admin_interval"`
	PrivilegeChangeInterval time.Duration `env:"SESSIONGUARD_PRIVILEGE_CHANGE_INTERVAL" envDefault:"30s" yaml:"privilege_change_interval"`
	NormalInterval          time.Duration `env:"SESSIONGUARD_NORMAL_INTERVAL" envDefault:"300s" yaml:"normal_interval"`

	// MaxRegenerationsPerHour caps identifier rotations per calendar hour,
	// preventing triggered regeneration from becoming a denial-of-service
	// vector against the store
	MaxRegenerationsPerHour int `env:"SESSIONGUARD_MAX_REGENERATIONS_PER_HOUR" envDefault:"50" yaml:"max_regenerations_per_hour"`

	// RegenerationGuardWindow suppresses a second regeneration arriving
	// within this window of the previous one
	RegenerationGuardWindow time.Duration `env:"SESSIONGUARD_REGENERATION_GUARD_WINDOW" envDefault:"1s" yaml:"regeneration_guard_window"`

	// Concurrency caps per role; zero means unbounded
	MaxConcurrentAdmin int `env:"SESSIONGUARD_MAX_CONCURRENT_ADMIN" envDefault:"2" yaml:"max_concurrent_admin"`
	MaxConcurrentUser  int `env:"SESSIONGUARD_MAX_CONCURRENT_USER" envDefault:"0" yaml:"max_concurrent_user"`

	CSRFTokenTTL    time.Duration `env:"SESSIONGUARD_CSRF_TOKEN_TTL" envDefault:"1h" yaml:"csrf_token_ttl"`
	CSRFRotateOnUse bool          `env:"SESSIONGUARD_CSRF_ROTATE_ON_USE" envDefault:"false" yaml:"csrf_rotate_on_use"`

	// Drift thresholds: exceeding either is treated as hijack suspicion.
	// Zero disables the threshold.
	IPChangeThreshold        int `env:"SESSIONGUARD_IP_CHANGE_THRESHOLD" envDefault:"5" yaml:"ip_change_threshold"`
	UserAgentChangeThreshold int `env:"SESSIONGUARD_UA_CHANGE_THRESHOLD" envDefault:"3" yaml:"ua_change_threshold"`

	// Business-hours window for the off-hours risk factor, local hours,
	// start inclusive and end exclusive
	BusinessHoursStart int `env:"SESSIONGUARD_BUSINESS_HOURS_START" envDefault:"8" yaml:"business_hours_start"`
	BusinessHoursEnd   int `env:"SESSIONGUARD_BUSINESS_HOURS_END" envDefault:"18" yaml:"business_hours_end"`

	// StoreTimeout bounds every store operation; on timeout the caller
	// fails closed
	StoreTimeout time.Duration `env:"SESSIONGUARD_STORE_TIMEOUT" envDefault:"2s" yaml:"store_timeout"`

	// ActivityUpdateThreshold is the minimum time between activity updates
	ActivityUpdateThreshold time.Duration `env:"SESSIONGUARD_ACTIVITY_UPDATE_THRESHOLD" envDefault:"5m" yaml:"activity_update_threshold"`

	// CleanupInterval for expired sessions in the memory store (0 to disable)
	CleanupInterval time.Duration `env:"SESSIONGUARD_CLEANUP_INTERVAL" envDefault:"5m" yaml:"cleanup_interval"`

	// PreservedKeys lists the payload keys copied into the replacement
	// record on regeneration, in addition to the structural fields
	// (principal, role, issued-at, CSRF token) that always survive
	PreservedKeys []string `env:"SESSIONGUARD_PRESERVED_KEYS" envDefault:"locale" envSeparator:"," yaml:"preserved_keys"`
}

// DefaultConfig returns the default session security configuration.
func DefaultConfig() Config {
	return Config{
		CookieName:               "sguard",
		AnonIdleTimeout:          30 * time.Minute,
		AnonMaxLifetime:          24 * time.Hour,
		AuthIdleTimeout:          2 * time.Hour,
		AuthMaxLifetime:          30 * 24 * time.Hour,
		SuspiciousInterval:       60 * time.Second,
		AdminInterval:            180 * time.Second,
		PrivilegeChangeInterval:  30 * time.Second,
		NormalInterval:           300 * time.Second,
		MaxRegenerationsPerHour:  50,
		RegenerationGuardWindow:  time.Second,
		MaxConcurrentAdmin:       2,
		MaxConcurrentUser:        0,
		CSRFTokenTTL:             time.Hour,
		CSRFRotateOnUse:          false,
		IPChangeThreshold:        5,
		UserAgentChangeThreshold: 3,
		BusinessHoursStart:       8,
		BusinessHoursEnd:         18,
		StoreTimeout:             2 * time.Second,
		ActivityUpdateThreshold:  5 * time.Minute,
		CleanupInterval:          5 * time.Minute,
		PreservedKeys:            []string{"locale"},
	}
}

// GetTimeouts returns idle and max lifetime based on session state.
func (c Config) GetTimeouts(isAuthenticated bool) (idle, max time.Duration) {
	if isAuthenticated {
		return c.AuthIdleTimeout, c.AuthMaxLifetime
	}
	return c.AnonIdleTimeout, c.AnonMaxLifetime
}

// MaxConcurrent returns the session cap for the role; zero means unbounded.
func (c Config) MaxConcurrent(role Role) int {
	switch role {
	case RoleAdmin:
		return c.MaxConcurrentAdmin
	case RoleUser:
		return c.MaxConcurrentUser
	default:
		return 0
	}
}
