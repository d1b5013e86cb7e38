package models

// Court is a courthouse a complaint can be filed against.
type Court struct {
	CourtID   string `json:"courtId"`
	CourtName string `json:"courtName"`
}

// CourtsResponse is the body of GET /courts.
type CourtsResponse struct {
	CourtsList []Court `json:"courtsList"`
}

// CaptchaResponse is the body of GET /captcha.
type CaptchaResponse struct {
	SessionID    string `json:"sessionId"`
	CaptchaImage string `json:"captchaImage"` // base64 PNG
}

// SubmitResponse is the success envelope of POST /submit-form.
type SubmitResponse struct {
	Message       string            `json:"Message"`
	SubmissionID  string            `json:"SubmissionId"`
	FormData      map[string]string `json:"FormData"`
	UploadedFiles []string          `json:"UploadedFiles"`
}

// ContactDetails is the payload of POST /contact-details.
type ContactDetails struct {
	CourtCaseNumber    string `json:"courtCaseNumber"`
	ContactDescription string `json:"contactDescription"`
	Courthouse         string `json:"courthouse"`
}

// ContactDetailsResponse echoes a validated ContactDetails payload.
type ContactDetailsResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    ContactDetails `json:"data"`
}

// Survey is the optional satisfaction survey filled after a submission.
type Survey struct {
	UserToken    string `json:"userToken"`
	Satisfaction int    `json:"satisfaction"`
	EaseOfUse    int    `json:"easeOfUse"`
	Comments     string `json:"comments"`
}

// EmailRequest is the payload of POST /send-email.
type EmailRequest struct {
	Issue string `json:"issue"` // base64-encoded UTF-8
	IP    string `json:"ip"`
}

// EmailResponse is returned when a notification was relayed.
type EmailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MonthlyReferralReport is one department row of the referral report.
type MonthlyReferralReport struct {
	DepartmentName             string   `json:"departmentName"`
	CurrentMonthTotal          int      `json:"currentMonthTotal"`
	PreviousMonthTotal         int      `json:"previousMonthTotal"`
	SameMonthLastYearTotal     int      `json:"sameMonthLastYearTotal"`
	PercentChangeFromPrevMonth *float64 `json:"percentChangeFromPrevMonth"`
	PercentChangeFromLastYear  *float64 `json:"percentChangeFromLastYear"`
}

// ReportResponse is the body of GET /monthly-referral-report.
type ReportResponse struct {
	Success    bool                    `json:"success"`
	Month      int                     `json:"month"`
	Year       int                     `json:"year"`
	ReportDate string                  `json:"reportDate"`
	Data       []MonthlyReferralReport `json:"data"`
}

// ErrorResponse is the body of every 4xx/5xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Title     string `json:"title,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}
