/*
 (c) Copyright [2024] The sfadmin Authors.
 Licensed under the Apache License, Version 2.0 (the "License");
 You may not use this file except in compliance with the License.
 You may obtain a copy of the License at

 http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package util

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

const (
	ipv4Octets   = 4
	maxOctet     = 255
	maxCIDRBits  = 32
	bitsPerOctet = 8
)

// IsIPv4 reports whether ip is a strict dotted quad: four decimal octets in
// 0-255 with no sign, no blanks and no leading zeros.
func IsIPv4(ip string) bool {
	_, err := IPToInt(ip)
	return err == nil
}

// IPToInt converts a dotted quad to its 32-bit integer value
func IPToInt(ip string) (uint32, error) {
	parts := strings.Split(ip, ".")
	if len(parts) != ipv4Octets {
		return 0, fmt.Errorf("%q is not a dotted-quad IPv4 address", ip)
	}
	var value uint32
	for _, part := range parts {
		if part == "" || len(part) > 3 || (len(part) > 1 && part[0] == '0') {
			return 0, fmt.Errorf("%q is not a dotted-quad IPv4 address", ip)
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("%q is not a dotted-quad IPv4 address", ip)
			}
		}
		octet, err := strconv.Atoi(part)
		if err != nil || octet > maxOctet {
			return 0, fmt.Errorf("octet %q of %q is out of range", part, ip)
		}
		value = value<<bitsPerOctet | uint32(octet)
	}
	return value, nil
}

// IntToIP converts a 32-bit integer to a dotted quad
func IntToIP(value uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d",
		byte(value>>24), byte(value>>16), byte(value>>8), byte(value))
}

// CIDRToMask converts a prefix length to a dotted-quad netmask
func CIDRToMask(prefix int) (string, error) {
	if prefix < 0 || prefix > maxCIDRBits {
		return "", fmt.Errorf("prefix length %d is out of range", prefix)
	}
	if prefix == 0 {
		return IntToIP(0), nil
	}
	return IntToIP(^uint32(0) << (maxCIDRBits - prefix)), nil
}

// MaskToCIDR converts a dotted-quad netmask to a prefix length. The mask must
// be a contiguous run of ones.
func MaskToCIDR(mask string) (int, error) {
	value, err := IPToInt(mask)
	if err != nil {
		return 0, err
	}
	prefix := bits.LeadingZeros32(^value)
	if value<<prefix != 0 {
		return 0, fmt.Errorf("%s is not a contiguous netmask", mask)
	}
	return prefix, nil
}

// NetworkAddress returns the network address of ip in the given netmask
func NetworkAddress(ip, mask string) (string, error) {
	ipValue, maskValue, err := ipAndMask(ip, mask)
	if err != nil {
		return "", err
	}
	return IntToIP(ipValue & maskValue), nil
}

// BroadcastAddress returns the broadcast address of ip in the given netmask
func BroadcastAddress(ip, mask string) (string, error) {
	ipValue, maskValue, err := ipAndMask(ip, mask)
	if err != nil {
		return "", err
	}
	return IntToIP(ipValue | ^maskValue), nil
}

// IsIPInNetwork reports whether ip belongs to network/mask
func IsIPInNetwork(ip, network, mask string) (bool, error) {
	ipNet, err := NetworkAddress(ip, mask)
	if err != nil {
		return false, err
	}
	netNet, err := NetworkAddress(network, mask)
	if err != nil {
		return false, err
	}
	return ipNet == netNet, nil
}

func ipAndMask(ip, mask string) (ipValue, maskValue uint32, err error) {
	ipValue, err = IPToInt(ip)
	if err != nil {
		return 0, 0, err
	}
	if _, err = MaskToCIDR(mask); err != nil {
		return 0, 0, err
	}
	maskValue, err = IPToInt(mask)
	return ipValue, maskValue, err
}
