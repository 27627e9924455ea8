package queue

import (
	"io"
	"time"

	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// Job represents a transcription job
type Job struct {
	RequestName string
	SourceType  string
	Data        io.Reader
	Status      string
	Error       error
	Record      *types.AudioRecord
	CreatedAt   time.Time

	done chan struct{}
}

// NewJob creates a new job with default values
func NewJob(requestName, sourceType string, data io.Reader) *Job {
	return &Job{
		RequestName: requestName,
		SourceType:  sourceType,
		Data:        data,
		Status:      types.StatusQueued,
		CreatedAt:   time.Now(),
		done:        make(chan struct{}),
	}
}

// Done is closed once the job has completed or failed
func (j *Job) Done() <-chan struct{} {
	return j.done
}
