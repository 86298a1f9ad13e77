package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/launchdarkly/diagnostic-contract-tests/diagnostic"
	"github.com/launchdarkly/diagnostic-contract-tests/servicedef"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// ServiceInvoker sends compilations to a compile service over HTTP.
type ServiceInvoker struct {
	baseURL string
	client  *http.Client
	status  servicedef.ServiceStatus
}

// ConnectService polls the compile service at baseURL until it answers the status query or
// statusTimeout elapses. Progress is written to output.
func ConnectService(baseURL string, statusTimeout time.Duration, output io.Writer) (*ServiceInvoker, error) {
	s := &ServiceInvoker{baseURL: strings.TrimSuffix(baseURL, "/"), client: http.DefaultClient}
	status, err := s.queryStatus(statusTimeout, output)
	if err != nil {
		return nil, err
	}
	s.status = status
	return s, nil
}

// Status returns what the service reported about itself.
func (s *ServiceInvoker) Status() servicedef.ServiceStatus {
	return s.status
}

// RequireFormat returns an error if the service cannot report diagnostics in format.
func (s *ServiceInvoker) RequireFormat(format diagnostic.Format) error {
	if format == diagnostic.FormatJSON && !s.status.HasCapability(servicedef.CapabilityJSONDiagnostics) {
		return fmt.Errorf("compile service %q does not have the %q capability needed for %s diagnostics",
			s.status.Name, servicedef.CapabilityJSONDiagnostics, format)
	}
	return nil
}

func (s *ServiceInvoker) queryStatus(timeout time.Duration, output io.Writer) (servicedef.ServiceStatus, error) {
	fmt.Fprintf(output, "Connecting to compile service at %s", s.baseURL)

	deadline := time.Now().Add(timeout)
	for {
		fmt.Fprintf(output, ".")
		resp, err := s.client.Get(s.baseURL)
		if err == nil {
			fmt.Fprintln(output)
			respData, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return servicedef.ServiceStatus{}, fmt.Errorf("compile service returned status code %d", resp.StatusCode)
			}
			if err != nil {
				return servicedef.ServiceStatus{}, err
			}
			if len(respData) == 0 {
				fmt.Fprintf(output, "Status query successful, but service provided no metadata\n")
				return servicedef.ServiceStatus{}, nil
			}
			fmt.Fprintf(output, "Status query returned metadata: %s\n", string(respData))
			var status servicedef.ServiceStatus
			if err := json.Unmarshal(respData, &status); err != nil {
				return servicedef.ServiceStatus{}, fmt.Errorf("malformed status response from compile service: %s", string(respData))
			}
			return status, nil
		}
		if !time.Now().Before(deadline) {
			return servicedef.ServiceStatus{}, fmt.Errorf("timed out, result of last query was: %w", err)
		}
		time.Sleep(time.Millisecond * 100)
	}
}

// Invoke posts one compilation. A service with the "timeout" capability is told the timeout and
// the request is abandoned only some time after it; otherwise the request is abandoned at the
// timeout. An invocation with environment variables fails with ErrUnsupported if the service
// lacks the "env" capability.
func (s *ServiceInvoker) Invoke(ctx context.Context, inv Invocation) (Output, error) {
	logger := inv.logger()
	if len(inv.Env) > 0 && !s.status.HasCapability(servicedef.CapabilityEnv) {
		return Output{}, fmt.Errorf("environment variables are %w: missing %q capability", ErrUnsupported, servicedef.CapabilityEnv)
	}
	serviceTimeout := inv.Timeout > 0 && s.status.HasCapability(servicedef.CapabilityTimeout)
	params := servicedef.CompileParams{
		Tag:      inv.Tag,
		File:     inv.FixtureName,
		Source:   inv.Source,
		Args:     inv.Flags,
		Revision: inv.Revision,
	}
	if len(inv.Env) > 0 {
		params.Env = make(map[string]string, len(inv.Env))
		for _, kv := range inv.Env {
			k, v, _ := strings.Cut(kv, "=")
			params.Env[k] = v
		}
	}
	if serviceTimeout {
		params.TimeoutMS = ldvalue.NewOptionalInt(int(inv.Timeout / time.Millisecond))
	}
	data, err := json.Marshal(params)
	if err != nil {
		return Output{}, err
	}
	target := fmt.Sprintf("POST %s", s.baseURL)

	reqCtx := context.WithoutCancel(ctx)
	if inv.Timeout > 0 {
		limit := inv.Timeout
		if serviceTimeout {
			limit += inv.Timeout / 2
		}
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(reqCtx, limit)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.baseURL, bytes.NewBuffer(data))
	if err != nil {
		return Output{}, &InvocationError{Command: target, Err: err}
	}
	req.Header.Add("Content-Type", "application/json")

	logger.Printf("Sending compilation request: %s", string(data))
	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return Output{}, &InvocationError{Command: target, Err: fmt.Errorf("%w after %s", ErrTimeout, inv.Timeout)}
		}
		return Output{}, &InvocationError{Command: target, Err: fmt.Errorf("compile service request failed: %w", err)}
	}
	respData, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return Output{}, &InvocationError{Command: target, Err: fmt.Errorf("failed to read compile service response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Output{}, &InvocationError{Command: target,
			Err: fmt.Errorf("unexpected response status %d from compile service: %s", resp.StatusCode, string(respData))}
	}
	var result servicedef.CompileResult
	if err := json.Unmarshal(respData, &result); err != nil {
		return Output{}, &InvocationError{Command: target, Err: fmt.Errorf("malformed compile service response: %w", err)}
	}
	out := Output{ExitCode: result.ExitCode, Duration: time.Since(start)}
	if result.TimedOut {
		return out, &InvocationError{Command: target, Err: fmt.Errorf("%w after %s", ErrTimeout, inv.Timeout)}
	}
	if out.Stdout, err = DecodeOutput("stdout", []byte(result.Stdout)); err != nil {
		return out, withCommand(err, target)
	}
	if out.Stderr, err = DecodeOutput("stderr", []byte(result.Stderr)); err != nil {
		return out, withCommand(err, target)
	}
	logger.Printf("Compile service reported exit status %d", out.ExitCode)
	return out, nil
}

// Stop tells the compile service that it should exit.
func (s *ServiceInvoker) Stop() error {
	req, _ := http.NewRequest(http.MethodDelete, s.baseURL, nil)
	resp, err := s.client.Do(req)
	if err == nil {
		_ = resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("compile service returned HTTP %d", resp.StatusCode)
		}
	}
	// It's normal for the request to return an I/O error if the service immediately quit before sending a response
	return nil
}
