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

// Connack is the CONNECT acknowledgement. A v3.1.1 instance is exactly
// 4 bytes on the wire; v5 adds a property block.
type Connack struct {
	Version        Version
	SessionPresent bool
	Code           code.Code
	Properties     *Properties
}

// NewConnack parses a CONNACK body (variable header only, CONNACK has
// no payload).
func NewConnack(fixedHeader *FixedHeader, version Version, r io.Reader) (*Connack, error) {
	if fixedHeader.Flags != FixedHeaderFlagReserved {
		return nil, xerror.ErrMalformed
	}
	c := &Connack{Version: version}
	restBuffer := make([]byte, fixedHeader.RemainLength)
	if _, err := io.ReadFull(r, restBuffer); err != nil {
		return nil, xerror.ErrMalformed
	}
	buf := bytes.NewBuffer(restBuffer)
	flags, err := buf.ReadByte()
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	c.SessionPresent = flags&0x01 != 0
	reason, err := buf.ReadByte()
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	c.Code = code.Code(reason)
	if IsVersion5(version) {
		c.Properties, err = ReadProperties(CONNACK, buf)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Encode writes the full CONNACK packet (fixed header + body).
func (c *Connack) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	var flags byte
	if c.SessionPresent {
		flags = 0x01
	}
	buf.WriteByte(flags)
	buf.WriteByte(byte(c.Code))
	if IsVersion5(c.Version) {
		if err := WriteProperties(buf, c.Properties); err != nil {
			return err
		}
	}
	return encode(&FixedHeader{PacketType: CONNACK, Flags: FixedHeaderFlagReserved}, buf, w)
}
