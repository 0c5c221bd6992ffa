// Package http provides HTTP handlers and middleware for the availability API.
//
// The router exposes the following endpoints:
//   - POST /rooms: creates a room. Body: {"name"}. Response: {"room":{"id","name","created_at"}}
//     with a Location header.
//   - GET /rooms/{id}: returns the room or 404.
//   - GET /rooms/{id}/participants: lists every participant that saved a grid,
//     ordered by name, as `participantDTO` values defined in availability_handler.go.
//   - GET /rooms/{id}/participants/{name}: returns one participant. A name that never
//     saved gets the all-zero grid with "submitted": false.
//   - PUT /rooms/{id}/participants/{name}: replaces the participant's grid. Body:
//     {"schedule_encoding"}. Malformed encodings are rejected with 422.
//   - GET /rooms/{id}/heatmap: aggregate attendance, attendee names per slot and
//     the attendance grid in wire encoding. The response carries an ETag derived
//     from the stored grids and honours If-None-Match with 304.
//   - GET /rooms/{id}/heatmap.xlsx: the heat-map as a spreadsheet attachment.
//
// Participant names are path segments and must be URL escaped by callers.
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
