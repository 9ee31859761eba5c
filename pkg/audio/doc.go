// ABOUTME: Package documentation for audio types
// ABOUTME: Shared value types exchanged between decoders, buffers and hardware
/*
Package audio defines the value types shared across the playback engine:
stream metadata reported by decoders and the fixed-length multichannel
frames exchanged with the hardware layer once per callback period.
*/
package audio
