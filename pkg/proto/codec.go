// Package proto implements the newline-delimited request/response codec.
//
// Requests have the form "OP ARG\n" and responses "OK <payload>\n" or
// "ERR <message>\n". The codec is stateless; framing (reading up to the
// newline) is the caller's job.
package proto

import (
	"strconv"
	"strings"
)

// Op is a request operation keyword.
type Op string

const (
	OpSleep Op = "SLEEP"
	OpEcho  Op = "ECHO"
)

// Request is a parsed client request. Op is normalized to upper case and a
// SLEEP argument is normalized to its canonical decimal form.
type Request struct {
	Op  Op
	Arg string
}

// Response is a single reply line tagged with the sequence number of the
// request it answers. Seq never goes on the wire; it exists so responses
// can be reordered back into request order before writing.
type Response struct {
	Seq     uint64
	OK      bool
	Payload string
}

// ParseError reports a malformed request line. The message is exactly what
// goes on the wire after the "ERR " prefix.
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string { return e.msg }

func parseErr(msg string) *ParseError { return &ParseError{msg: msg} }

// Parse decodes one request line (without the trailing newline). A trailing
// carriage return is tolerated. Operation keywords are case-insensitive.
func Parse(line string) (Request, error) {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return Request{}, parseErr("empty request")
	}

	word, arg, _ := strings.Cut(line, " ")
	switch Op(strings.ToUpper(word)) {
	case OpSleep:
		// Surrounding whitespace on the argument is tolerated.
		ms, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || ms < 0 {
			return Request{}, parseErr("invalid SLEEP argument")
		}
		return Request{Op: OpSleep, Arg: strconv.Itoa(ms)}, nil

	case OpEcho:
		// The argument is everything after the first space, verbatim.
		return Request{Op: OpEcho, Arg: arg}, nil

	default:
		return Request{}, parseErr("unknown operation")
	}
}

// Format encodes a response as a wire line, newline included.
func Format(r Response) string {
	if r.OK {
		return "OK " + r.Payload + "\n"
	}
	return "ERR " + r.Payload + "\n"
}

// FormatRequest encodes a request back to its wire form, without the newline.
func FormatRequest(r Request) string {
	return string(r.Op) + " " + r.Arg
}

// OK builds a success response for the given sequence number.
func OK(seq uint64, payload string) Response {
	return Response{Seq: seq, OK: true, Payload: payload}
}

// Err builds an error response for the given sequence number.
func Err(seq uint64, msg string) Response {
	return Response{Seq: seq, OK: false, Payload: msg}
}
