package jobs

import "time"

// JobID is assigned by the queue store when a job is enqueued.
type JobID int64

// Record is one queued unit of one-off work. Params holds the encoded Args and
// is decoded only by the handler that agreed on the contract.
type Record struct {
	ID          JobID
	HandlerName string
	Params      []byte
	CreatedAt   time.Time
}

// Args decodes the record's parameter blob.
func (r *Record) Args() (Args, error) {
	return DecodeArgs(r.Params)
}
