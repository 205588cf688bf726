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

	"github.com/yunqi/lighthouse/internal/xerror"
)

// Pingreq and Pingresp are each exactly two bytes on the wire: a fixed
// header byte and a zero remaining-length.
type Pingreq struct{}
type Pingresp struct{}

func NewPingreq(fixedHeader *FixedHeader, _ Version, _ io.Reader) (*Pingreq, error) {
	if fixedHeader.RemainLength != 0 {
		return nil, xerror.ErrMalformed
	}
	return &Pingreq{}, nil
}

func (*Pingreq) Encode(w io.Writer) error {
	return encode(&FixedHeader{PacketType: PINGREQ, Flags: FixedHeaderFlagReserved}, &bytes.Buffer{}, w)
}

func NewPingresp(fixedHeader *FixedHeader, _ Version, _ io.Reader) (*Pingresp, error) {
	if fixedHeader.RemainLength != 0 {
		return nil, xerror.ErrMalformed
	}
	return &Pingresp{}, nil
}

func (*Pingresp) Encode(w io.Writer) error {
	return encode(&FixedHeader{PacketType: PINGRESP, Flags: FixedHeaderFlagReserved}, &bytes.Buffer{}, w)
}
