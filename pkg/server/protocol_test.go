package server

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end wire protocol scenarios over a real TCP connection.
func TestProtocolScenarios(t *testing.T) {
	cfg := testConfig()
	_, addr := startTestServer(t, cfg)

	tests := []struct {
		name           string
		input          string
		expectedOutput string
		minDuration    time.Duration
		maxDuration    time.Duration
	}{
		{
			name:           "echo",
			input:          "ECHO hello",
			expectedOutput: "OK hello",
			maxDuration:    500 * time.Millisecond,
		},
		{
			name:           "echo empty",
			input:          "ECHO",
			expectedOutput: "OK ",
			maxDuration:    500 * time.Millisecond,
		},
		{
			name:           "sleep waits before answering",
			input:          "SLEEP 50",
			expectedOutput: "OK 50",
			minDuration:    50 * time.Millisecond,
			maxDuration:    2 * time.Second,
		},
		{
			name:           "unknown operation",
			input:          "FOO bar",
			expectedOutput: "ERR unknown operation",
			maxDuration:    500 * time.Millisecond,
		},
		{
			name:           "empty request",
			input:          "",
			expectedOutput: "ERR empty request",
			maxDuration:    500 * time.Millisecond,
		},
		{
			name:           "invalid sleep argument",
			input:          "SLEEP abc",
			expectedOutput: "ERR invalid SLEEP argument",
			maxDuration:    500 * time.Millisecond,
		},
		{
			name:           "negative sleep argument",
			input:          "SLEEP -1",
			expectedOutput: "ERR invalid SLEEP argument",
			maxDuration:    500 * time.Millisecond,
		},
		{
			name:           "echo with percent sign",
			input:          "ECHO 100%d done",
			expectedOutput: "OK 100%d done",
			maxDuration:    500 * time.Millisecond,
		},
		{
			name:           "lowercase op accepted",
			input:          "echo case",
			expectedOutput: "OK case",
			maxDuration:    500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
			require.NoError(t, err, "failed to connect to server")
			defer conn.Close()

			_, err = fmt.Fprintf(conn, "%s\n", tt.input)
			require.NoError(t, err, "failed to send request")

			start := time.Now()
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
			line, err := bufio.NewReader(conn).ReadString('\n')
			require.NoError(t, err, "failed to read response")
			elapsed := time.Since(start)

			assert.Equal(t, tt.expectedOutput+"\n", line)
			if tt.minDuration > 0 {
				assert.GreaterOrEqual(t, elapsed, tt.minDuration, "response arrived too early")
			}
			if tt.maxDuration > 0 {
				assert.LessOrEqual(t, elapsed, tt.maxDuration, "response arrived too late")
			}
		})
	}
}

// Several requests on one connection keep the connection usable after errors.
func TestProtocol_ErrorsKeepConnectionOpen(t *testing.T) {
	cfg := testConfig()
	_, addr := startTestServer(t, cfg)

	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	exchange := func(req, want string) {
		t.Helper()
		_, err := fmt.Fprintf(conn, "%s\n", req)
		require.NoError(t, err)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, want+"\n", line)
	}

	exchange("FOO", "ERR unknown operation")
	exchange("SLEEP nope", "ERR invalid SLEEP argument")
	exchange("ECHO still here", "OK still here")
}
