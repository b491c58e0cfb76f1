package ingest

import "errors"

var (
	// ErrMalformedRecord marks a raw ad missing its listing_id. The record
	// is skipped and excluded from the batch, never silently defaulted.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrShardProvision means no shard could be provisioned for pending
	// inserts. Fatal for the whole batch; the caller retries next run.
	ErrShardProvision = errors.New("shard provisioning failed")
)
