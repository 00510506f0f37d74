// Package notifications delivers pipeline events via ntfy.
//
// The default implementation publishes to the topic URL configured in
// config.toml and gracefully degrades to a no-op when no topic is set. Event
// categories (imports, scraping, review, errors) can be toggled individually,
// so a user who only cares about blocked sources is not paged for every
// import. Delivery failures are returned to the caller to log; nothing in the
// pipeline ever stops because a push could not be sent.
//
// Extend this package if you need alternative transports; callers depend
// only on the Service interface.
package notifications
