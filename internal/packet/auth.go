/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package packet

import (
	"bytes"
	"io"

	"github.com/yunqi/lighthouse/internal/code"
	"github.com/yunqi/lighthouse/internal/xerror"
)

// Auth represents the MQTT 5.0 AUTH packet, used for extended
// (challenge/response) authentication exchanges. The broker's
// SessionManager (spec §4.3) does not implement a multi-step
// authentication flow; this codec exists so a well-formed AUTH from a
// client still parses instead of tripping MalformedPacket.
type Auth struct {
	Code       code.Code
	Properties *Properties
}

func NewAuth(fixedHeader *FixedHeader, version Version, r io.Reader) (*Auth, error) {
	if !IsVersion5(version) {
		return nil, xerror.ErrProtocolViolation
	}
	a := &Auth{Code: code.Success}
	if fixedHeader.RemainLength == 0 {
		return a, nil
	}
	restBuffer := make([]byte, fixedHeader.RemainLength)
	if _, err := io.ReadFull(r, restBuffer); err != nil {
		return nil, xerror.ErrMalformed
	}
	buf := bytes.NewBuffer(restBuffer)
	reason, err := buf.ReadByte()
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	a.Code = code.Code(reason)
	if buf.Len() > 0 {
		a.Properties, err = ReadProperties(AUTH, buf)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Auth) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(a.Code))
	if err := WriteProperties(buf, a.Properties); err != nil {
		return err
	}
	return encode(&FixedHeader{PacketType: AUTH, Flags: FixedHeaderFlagReserved}, buf, w)
}
