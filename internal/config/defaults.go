package config

const (
	defaultConfigFile   = "appsettings.toml"
	defaultLocalSQL     = "file:complaints.db?_pragma=busy_timeout(5000)"
	defaultSurveySQL    = "file:survey.db?_pragma=busy_timeout(5000)"
	defaultListenAddr   = ":5000"
	defaultUIOrigin     = "http://localhost:4200"
	defaultLogDir       = "logs"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	defaultCaptchaStore = "memory"
	defaultSMTPPort     = 587
	defaultSMTPFrom     = "noreply@localhost"
	defaultMaxFiles     = 20
)
