// Package events provides a lightweight publish/subscribe broker for
// compiler lifecycle events such as artifact publishes, target state
// changes, and topology assembly outcomes. Delivery is best-effort: a
// subscriber that stops draining its channel loses events rather than
// blocking publishers.
package events
