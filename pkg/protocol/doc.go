// ABOUTME: Package documentation for protocol
// ABOUTME: Describes the websocket control protocol types
/*
Package protocol defines the message types of the websocket control
protocol: task requests and their timestamped responses.

Every control exchange is one Request answered by one Response whose ID
echoes the request. Task payloads travel in Request.Data as JSON.
*/
package protocol
