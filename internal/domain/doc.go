// Package domain contains the core business entities, value objects, and
// domain logic of the application. The Task entity and its partial-update
// structure live here, independent of storage and transport.
package domain
