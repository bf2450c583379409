// Package fwtest provides device-agnostic conformance testing for firmware
// transports.
//
//   - Architecture §8.5: "Error normalization to BUSY, UNAVAILABLE, INTERNAL"
package fwtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/radio-control/psc/internal/fw"
	"github.com/radio-control/psc/internal/ps"
)

// Capabilities describes the behavior a device under test advertises.
type Capabilities struct {
	// Model selects the error normalization token table.
	Model string

	// EmitsConfirms is set for firmware that answers requests on its own.
	// Operator-driven fakes leave it unset and skip the confirmation tests.
	EmitsConfirms bool

	// ConfirmWithin bounds how long an emitted confirmation may take to
	// surface on the stream.
	ConfirmWithin time.Duration
}

// ConformanceResult represents the result of one conformance test.
type ConformanceResult struct {
	TestName string
	Passed   bool
	Error    string
	Duration time.Duration
	Details  map[string]interface{}
}

// ConformanceReport represents the complete conformance test report.
type ConformanceReport struct {
	DeviceModel   string
	TotalTests    int
	PassedTests   int
	FailedTests   int
	Results       []ConformanceResult
	OverallPassed bool
	Duration      time.Duration
}

// RunConformance runs the complete conformance suite against a device
// implementation. newDevice must return a fresh, started device on every
// call; the suite closes each one it creates.
func RunConformance(t *testing.T, newDevice func() fw.Device, caps Capabilities) {
	startTime := time.Now()

	if caps.Model == "" {
		caps.Model = "generic"
	}
	if caps.ConfirmWithin <= 0 {
		caps.ConfirmWithin = 2 * time.Second
	}

	report := &ConformanceReport{
		DeviceModel:   caps.Model,
		Results:       []ConformanceResult{},
		OverallPassed: true,
	}

	runDispatchTests(newDevice, report)
	if caps.EmitsConfirms {
		runConfirmTests(newDevice, caps, report)
	}
	runCancellationTests(newDevice, report)
	runCloseTests(newDevice, caps, report)

	report.Duration = time.Since(startTime)

	printConformanceReport(t, report)

	if !report.OverallPassed {
		t.Fatalf("Device conformance failed: %d/%d tests passed", report.PassedTests, report.TotalTests)
	}
}

// runDispatchTests verifies that an idle device accepts both request flags.
func runDispatchTests(newDevice func() fw.Device, report *ConformanceReport) {
	for _, enable := range []bool{true, false} {
		device := newDevice()

		result := ConformanceResult{
			TestName: fmt.Sprintf("Dispatch_%s", flagName(enable)),
			Details:  make(map[string]interface{}),
		}
		start := time.Now()

		err := device.SendPSRequest(context.Background(), enable)
		result.Duration = time.Since(start)

		if err != nil {
			result.Passed = false
			result.Error = fmt.Sprintf("SendPSRequest(enable=%v) failed: %v", enable, err)
		} else {
			result.Passed = true
			result.Details["enable"] = enable
		}

		report.addResult(result)
		_ = device.Close()
	}
}

// runConfirmTests verifies that each accepted request produces the matching
// confirmation frame on the stream.
func runConfirmTests(newDevice func() fw.Device, caps Capabilities, report *ConformanceReport) {
	cases := []struct {
		enable bool
		want   ps.ConfirmType
	}{
		{enable: true, want: ps.ConfirmSleep},
		{enable: false, want: ps.ConfirmWakeup},
	}

	for _, tc := range cases {
		device := newDevice()

		result := ConformanceResult{
			TestName: fmt.Sprintf("Confirm_%s", flagName(tc.enable)),
			Details:  make(map[string]interface{}),
		}
		start := time.Now()

		if err := device.SendPSRequest(context.Background(), tc.enable); err != nil {
			result.Error = fmt.Sprintf("SendPSRequest(enable=%v) failed: %v", tc.enable, err)
		} else {
			select {
			case frame, ok := <-device.Confirms():
				if !ok {
					result.Error = "confirmation stream closed before the confirmation arrived"
				} else if got, err := ps.DecodeConfirmType(frame); err != nil {
					result.Error = fmt.Sprintf("confirmation frame did not decode: %v", err)
				} else if got != tc.want {
					result.Error = fmt.Sprintf("expected confirm type %s, got %s", tc.want, got)
				} else {
					result.Passed = true
					result.Details["confirmType"] = got.String()
				}
			case <-time.After(caps.ConfirmWithin):
				result.Error = fmt.Sprintf("no confirmation within %v", caps.ConfirmWithin)
			}
		}
		result.Duration = time.Since(start)

		report.addResult(result)
		_ = device.Close()
	}
}

// runCancellationTests verifies that a cancelled context fails the dispatch
// without reaching the firmware.
func runCancellationTests(newDevice func() fw.Device, report *ConformanceReport) {
	device := newDevice()
	defer func() { _ = device.Close() }()

	result := ConformanceResult{
		TestName: "Cancellation_DispatchRejected",
		Details:  make(map[string]interface{}),
	}
	start := time.Now()

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	err := device.SendPSRequest(cancelledCtx, true)
	result.Duration = time.Since(start)

	if err == nil {
		result.Error = "SendPSRequest with cancelled context should have failed"
	} else if !errors.Is(err, context.Canceled) {
		result.Error = fmt.Sprintf("expected context.Canceled, got: %v", err)
	} else {
		result.Passed = true
		result.Details["error"] = err.Error()
	}

	report.addResult(result)
}

// runCloseTests verifies shutdown semantics: dispatch fails and normalizes to
// UNAVAILABLE, the confirmation stream ends, and Close stays idempotent.
func runCloseTests(newDevice func() fw.Device, caps Capabilities, report *ConformanceReport) {
	device := newDevice()
	_ = device.Close()

	result := ConformanceResult{
		TestName: "Close_StopsDispatch",
		Details:  make(map[string]interface{}),
	}
	start := time.Now()

	err := device.SendPSRequest(context.Background(), true)
	if err == nil {
		result.Error = "SendPSRequest after Close should have failed"
	} else if normalized := fw.NormalizeFirmwareErrorForModel(err, nil, caps.Model); !errors.Is(normalized, fw.ErrUnavailable) {
		result.Error = fmt.Sprintf("post-Close error should normalize to UNAVAILABLE, got %v from %v", normalized, err)
	} else {
		result.Passed = true
		result.Details["error"] = err.Error()
	}
	result.Duration = time.Since(start)
	report.addResult(result)

	// The stream must end once the device is closed; buffered frames may
	// still drain first.
	result = ConformanceResult{
		TestName: "Close_EndsConfirmStream",
		Details:  make(map[string]interface{}),
	}
	start = time.Now()

	deadline := time.After(caps.ConfirmWithin)
	drained := 0
drain:
	for {
		select {
		case _, ok := <-device.Confirms():
			if !ok {
				result.Passed = true
				result.Details["drainedFrames"] = drained
				break drain
			}
			drained++
		case <-deadline:
			result.Error = fmt.Sprintf("confirmation stream still open %v after Close", caps.ConfirmWithin)
			break drain
		}
	}
	result.Duration = time.Since(start)
	report.addResult(result)

	result = ConformanceResult{
		TestName: "Close_Idempotent",
		Details:  make(map[string]interface{}),
	}
	start = time.Now()

	if err := device.Close(); err != nil {
		result.Error = fmt.Sprintf("second Close returned error: %v", err)
	} else {
		result.Passed = true
	}
	result.Duration = time.Since(start)
	report.addResult(result)
}

// Helper functions

func flagName(enable bool) string {
	if enable {
		return "Enable"
	}
	return "Disable"
}

func (r *ConformanceReport) addResult(result ConformanceResult) {
	r.TotalTests++
	if result.Passed {
		r.PassedTests++
	} else {
		r.FailedTests++
		r.OverallPassed = false
	}
	r.Results = append(r.Results, result)
}

func printConformanceReport(t *testing.T, report *ConformanceReport) {
	t.Logf("\n%s", strings.Repeat("=", 80))
	t.Logf("DEVICE CONFORMANCE REPORT")
	t.Logf("%s", strings.Repeat("=", 80))
	t.Logf("Model: %s", report.DeviceModel)
	t.Logf("Total Tests: %d", report.TotalTests)
	t.Logf("Passed: %d", report.PassedTests)
	t.Logf("Failed: %d", report.FailedTests)
	t.Logf("Overall: %s", map[bool]string{true: "PASS", false: "FAIL"}[report.OverallPassed])
	t.Logf("Duration: %v", report.Duration)
	t.Logf("%s", strings.Repeat("-", 80))

	t.Logf("%-30s %-8s %-12s %-s", "TEST NAME", "RESULT", "DURATION", "DETAILS")
	t.Logf("%s", strings.Repeat("-", 80))

	for _, result := range report.Results {
		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}

		details := result.Error
		if details == "" && len(result.Details) > 0 {
			var detailParts []string
			for k, v := range result.Details {
				detailParts = append(detailParts, fmt.Sprintf("%s=%v", k, v))
			}
			details = strings.Join(detailParts, ", ")
		}

		t.Logf("%-30s %-8s %-12s %-s",
			result.TestName,
			status,
			result.Duration.String(),
			details)
	}

	t.Logf("%s", strings.Repeat("=", 80))
}
