// Package realtime implements the notification session manager.
//
// The session manager:
//   - Owns one websocket connection per process, shared by every consumer
//   - Authenticates with an in-band auth frame after the socket opens
//   - Reconnects abnormal closures with capped exponential backoff
//   - Decodes server frames and forwards application events to an EventSink
//   - Publishes every state transition to subscribers, in order
package realtime
