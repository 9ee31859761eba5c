// ABOUTME: Package documentation for audio decoding
// ABOUTME: Random-access decoders for WAV, MP3, FLAC and Ogg Vorbis
/*
Package decode opens audio files and serves PCM chunks from arbitrary frame
offsets. Every decoder reports its sample rate, channel count and total
frame count up front and supports sample-accurate random access, which the
transport relies on for seek and pause/resume.
*/
package decode
