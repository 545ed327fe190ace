/*
DESCRIPTION
  vidrec-stop signals a running vidrec daemon to stop gracefully. The daemon
  is located through its pidfile, falling back to a scan of /proc by process
  name, and sent SIGTERM (or SIGINT with -int). With -wait, vidrec-stop polls
  until the process has exited so that scripts can sequence on a completed
  shutdown.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package main implements vidrec-stop, the graceful stop companion of the
// vidrec daemon.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	defaultPidPath = "/var/run/vidrec.pid"
	defaultName    = "vidrec"
	waitPoll       = 100 * time.Millisecond
)

func main() {
	pidPath := flag.String("pidfile", defaultPidPath, "path of the daemon's pidfile")
	name := flag.String("name", defaultName, "process name to search for when the pidfile is absent")
	useInt := flag.Bool("int", false, "send SIGINT instead of SIGTERM")
	wait := flag.Duration("wait", 0, "wait up to this long for the process to exit")
	flag.Parse()

	pid, err := findPid(*pidPath, *name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "vidrec-stop:", err)
		os.Exit(1)
	}

	sig := syscall.SIGTERM
	if *useInt {
		sig = syscall.SIGINT
	}

	err = syscall.Kill(pid, sig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vidrec-stop: could not signal pid %d: %v\n", pid, err)
		os.Exit(1)
	}
	fmt.Printf("sent %v to pid %d\n", sig, pid)

	if *wait == 0 {
		return
	}

	deadline := time.Now().Add(*wait)
	for time.Now().Before(deadline) {
		// Signal 0 probes for existence without delivering anything.
		if syscall.Kill(pid, 0) != nil {
			fmt.Printf("pid %d exited\n", pid)
			return
		}
		time.Sleep(waitPoll)
	}
	fmt.Fprintf(os.Stderr, "vidrec-stop: pid %d still running after %v\n", pid, *wait)
	os.Exit(1)
}

// findPid locates the daemon's pid, preferring the pidfile and falling back
// to a scan of /proc for a process with the given name.
func findPid(pidPath, name string) (int, error) {
	b, err := os.ReadFile(pidPath)
	if err == nil {
		pid, perr := strconv.Atoi(strings.TrimSpace(string(b)))
		if perr != nil {
			return 0, fmt.Errorf("bad pidfile %s: %v", pidPath, perr)
		}
		// A stale pidfile may outlive the daemon; verify before using it.
		if syscall.Kill(pid, 0) == nil {
			return pid, nil
		}
	}

	pid, err := scanProc(name)
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// scanProc searches /proc for a process whose comm matches name, skipping
// this process itself.
func scanProc(name string) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, fmt.Errorf("could not read /proc: %v", err)
	}

	self := os.Getpid()
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid == self {
			continue
		}
		comm, err := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(comm)) == name {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("no %s process found", name)
}
