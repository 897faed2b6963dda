package models

// OCRRequest is the JSON body of POST /ocr. Exactly one of Image (a data URI)
// or ImageURL is expected.
type OCRRequest struct {
	Image             string `json:"image,omitempty"`
	ImageURL          string `json:"image_url,omitempty"`
	OCREngine         string `json:"ocrEngine"`
	GeminiModel       string `json:"geminiModel,omitempty"`
	TesseractLanguage string `json:"tesseractLanguage,omitempty"`
	ExpectedText      string `json:"expected_text,omitempty"`
}

// TranslateRequest binds from either a form or a JSON body
type TranslateRequest struct {
	Text           string `json:"text" form:"text"`
	GeminiModel    string `json:"geminiModel" form:"geminiModel"`
	SourceLanguage string `json:"sourceLanguage,omitempty" form:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage,omitempty" form:"targetLanguage"`
}

type ExportRequest struct {
	Text string `json:"text" form:"text"`
}

// AccuracyResult compares the extraction with the caller's expected text
type AccuracyResult struct {
	ExpectedText string  `json:"expected_text"`
	CER          float64 `json:"character_error_rate"`
	WER          float64 `json:"word_error_rate"`
	MatchScore   float64 `json:"match_score"`
}

type OCRResponse struct {
	RequestID         string          `json:"request_id"`
	Text              string          `json:"text"`
	EngineUsed        string          `json:"engine_used"`
	ProcessingTimeSec float64         `json:"processing_time_sec"`
	Accuracy          *AccuracyResult `json:"accuracy,omitempty"`
}

type TranslateResponse struct {
	RequestID      string `json:"request_id"`
	TranslatedText string `json:"translatedText"`
}

// ErrorResponse carries the failure kind next to the HTTP status text
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
