// Package events provides the domain events of the task pipeline and the
// machinery that moves them between processes.
//
// The primary components are:
//   - TaskEvent and ReminderEvent: immutable records of task lifecycle facts
//   - Message: a serialized event addressed to a topic
//   - Bus: the transport that carries messages (Dapr pub/sub or in-memory)
//   - Publisher: turns facts into messages and delivers them best-effort
//     through a bounded outbound queue, so a slow or failing bus never
//     blocks the mutation that produced the fact
package events
