package types

// ConvertRequest is the request body for POST marimo-tools/convert.
type ConvertRequest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ToolResponse is the body of every marimo-tools response. Only the fields
// relevant to the outcome are set.
type ToolResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ToolFailure is the body of a failed marimo-tools response. error is always
// present, even when the tool printed nothing.
type ToolFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
