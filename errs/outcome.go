// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errs

// AnchorOutcome is the user-visible reason attached to an anchoring attempt
type AnchorOutcome string

const (
	OutcomeOK          AnchorOutcome = "ok"
	OutcomeFallback    AnchorOutcome = "fallback"
	OutcomeTimeout     AnchorOutcome = "timeout"
	OutcomeUnreachable AnchorOutcome = "unreachable"
	OutcomeMalformed   AnchorOutcome = "malformed"
	OutcomeRejected    AnchorOutcome = "rejected"
)

// Outcome maps an anchoring error to its reported reason. Validation and
// state errors are reported as rejected, since they never reach an
// external collaborator.
func Outcome(err error) AnchorOutcome {
	switch {
	case err == nil:
		return OutcomeOK
	case IsTimeout(err):
		return OutcomeTimeout
	case IsNetwork(err):
		return OutcomeUnreachable
	case IsProtocol(err):
		return OutcomeMalformed
	default:
		return OutcomeRejected
	}
}

// Fallback returns true if the caller may offer a demo path without a real
// on-chain proof
func (o AnchorOutcome) Fallback() bool {
	switch o {
	case OutcomeTimeout, OutcomeUnreachable, OutcomeMalformed:
		return true
	default:
		return false
	}
}
