// Package event models object change notifications and decides which of
// them enter the replication pipeline.
//
// The inbound shape is the bucket notification envelope:
//
//	{
//	  "detail-type": "Object Created",
//	  "detail": {
//	    "bucket": {"name": "src-bucket"},
//	    "object": {"key": "a.txt", "version-id": "..."},
//	    "reason": "PutObject"
//	  }
//	}
//
// The Filter accepts created, explicit-delete and tag-change notifications
// and publishes the original notification bytes onto the ordered queue,
// keyed by object key. Everything else (restores, storage-class and tier
// transitions, ACL changes, lifecycle-caused deletes) is dropped: the
// destination bucket is expected to run its own lifecycle configuration.
package event
