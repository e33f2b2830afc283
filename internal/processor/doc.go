// Package processor contains the consumers of the task event topics: the
// recurring processor that materializes the next instance of completed
// recurring tasks, the audit processor that records every task event, and
// the notification processor that turns reminders into notifications.
//
// Each processor is an events.Handler. NewRouter exposes a set of them over
// HTTP the way a Dapr sidecar expects to deliver pub/sub messages.
package processor
