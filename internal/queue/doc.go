// Package queue defines the ordered message transport used between the
// notification filter and the batch consumer.
//
// Messages carry a group ID (the object key). The transport guarantees that
// messages sharing a group ID are delivered in publication order and that at
// most one message per group is in flight at a time. Across groups there is
// no ordering guarantee.
//
// Two implementations are provided: an SQS FIFO adapter for the hosted
// deployment and an in-process Memory queue for the relay command and tests.
package queue
