package paybox

import "time"

// Recorder receives gateway measurements
type Recorder interface {
	ProviderCall(operation, outcome string, elapsed time.Duration)
	Callback(format, outcome string)
	SignatureFailure(format string)
	Charge(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ProviderCall(string, string, time.Duration) {}
func (nopRecorder) Callback(string, string)                    {}
func (nopRecorder) SignatureFailure(string)                    {}
func (nopRecorder) Charge(string)                              {}
