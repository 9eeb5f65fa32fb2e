// Package eventqueue provides an unbounded FIFO used to hand events from the
// socket reader to slower consumers without blocking the reader.
package eventqueue
