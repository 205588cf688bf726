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

// DisconnectReasonNormal is reason code 0: the session ends cleanly and
// any stored will message is discarded.
const DisconnectReasonNormal code.Code = 0x00

// Disconnect represents the MQTT DISCONNECT packet. It is empty on
// v3.1.1; v5 adds a reason code and optional property block.
type Disconnect struct {
	Version    Version
	Code       code.Code
	Properties *Properties
}

func NewDisconnect(fixedHeader *FixedHeader, version Version, r io.Reader) (*Disconnect, error) {
	d := &Disconnect{Version: version, Code: DisconnectReasonNormal}
	if fixedHeader.RemainLength == 0 {
		return d, nil
	}
	if !IsVersion5(version) {
		return nil, xerror.ErrMalformed
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
	d.Code = code.Code(reason)
	if buf.Len() > 0 {
		d.Properties, err = ReadProperties(DISCONNECT, buf)
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Disconnect) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if IsVersion5(d.Version) && (d.Code != DisconnectReasonNormal || d.Properties != nil) {
		buf.WriteByte(byte(d.Code))
		if err := WriteProperties(buf, d.Properties); err != nil {
			return err
		}
	}
	return encode(&FixedHeader{PacketType: DISCONNECT, Flags: FixedHeaderFlagReserved}, buf, w)
}

// ClearsWill reports whether this DISCONNECT should discard the
// session's stored will message (spec §4.3 "Disconnect").
func (d *Disconnect) ClearsWill() bool {
	return d.Code == DisconnectReasonNormal
}
