// Copyright (c) 2017 Ma Weiwei, Max Riveiro
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

//go:build linux

package socket

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// The default value of UIO_MAXIOV/IOV_MAX is 1024 on Linux.
const iovMax = 1024

func sysSocket(family, sotype, proto int) (int, error) {
	return unix.Socket(family, sotype|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
}

func sysAccept(fd int) (int, unix.Sockaddr, error) {
	return unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
}

func writev(fd int, bs [][]byte) (int, error) {
	n, err := unix.Writev(fd, bs)
	if n < 0 {
		n = 0
	}
	return n, err
}

func maxListenerBacklog() int {
	fd, err := os.Open("/proc/sys/net/core/somaxconn")
	if err != nil {
		return unix.SOMAXCONN
	}
	defer fd.Close()

	line, err := bufio.NewReader(fd).ReadString('\n')
	if err != nil {
		return unix.SOMAXCONN
	}
	f := strings.Fields(line)
	if len(f) < 1 {
		return unix.SOMAXCONN
	}
	n, err := strconv.Atoi(f[0])
	if err != nil || n == 0 {
		return unix.SOMAXCONN
	}
	// Linux stores the backlog in a uint16, truncate it to avoid wrapping.
	if n > 1<<16-1 {
		n = 1<<16 - 1
	}
	return n
}
