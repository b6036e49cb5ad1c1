package filament

// RecognizedFilamentData holds the attributes read off a spool label.
// Every field is independently optional; a nil pointer means the model
// could not identify the value.
type RecognizedFilamentData struct {
	Brand     *string  `json:"brand"`
	Material  *string  `json:"material"`
	ColorName *string  `json:"colorName"`
	ColorHex  *string  `json:"colorHex"`
	Weight    *string  `json:"weight"`
	Diameter  *float64 `json:"diameter"`
}

// RecognitionResult is the response contract of the recognize endpoint.
// On success Data and Confidence are populated; on failure only Error is.
type RecognitionResult struct {
	Success    bool                    `json:"success"`
	Data       *RecognizedFilamentData `json:"data,omitempty"`
	Confidence *float64                `json:"confidence,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// Failure builds a failed result carrying the given error text.
func Failure(message string) RecognitionResult {
	return RecognitionResult{
		Success: false,
		Error:   message,
	}
}

// Succeeded builds a successful result with its confidence score.
func Succeeded(data RecognizedFilamentData, confidence float64) RecognitionResult {
	return RecognitionResult{
		Success:    true,
		Data:       &data,
		Confidence: &confidence,
	}
}
