package existence

// Status is the tri-state answer to "is this artifact at the registry".
type Status string

const (
	StatusExists    Status = "exists"
	StatusNotExists Status = "not_exists"
	StatusUncertain Status = "uncertain"
)

// Result is the outcome of one existence check. Certain is true only
// for statuses Exists and NotExists; an Uncertain status is never
// certain and usually carries the error that made it so.
type Result struct {
	Status      Status `json:"status"`
	Certain     bool   `json:"certain"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

func exists() Result {
	return Result{Status: StatusExists, Certain: true}
}

func notExists() Result {
	return Result{Status: StatusNotExists, Certain: true}
}

func uncertain(detail string) Result {
	return Result{Status: StatusUncertain, Certain: false, ErrorDetail: detail}
}
