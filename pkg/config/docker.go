package config

import (
	"net"
	"net/url"
	"os"
	"sync"
)

const dockerHostGateway = "host.docker.internal"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if the application is running inside a Docker container.
// Detection is based on the presence of /.dockerenv. The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps localhost to the Docker host gateway when containerised.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

// ResolveURLForDocker rewrites a localhost API URL so a containerised dashboard
// can reach an API running on the host machine. Unparseable URLs are returned unchanged.
func ResolveURLForDocker(raw string) string {
	return resolveURL(raw, IsRunningInDocker())
}

func resolveHost(host string, inDocker bool) string {
	if inDocker && (host == "localhost" || host == "127.0.0.1") {
		return dockerHostGateway
	}
	return host
}

func resolveURL(raw string, inDocker bool) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := resolveHost(u.Hostname(), inDocker)
	if host == u.Hostname() {
		return raw
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	return u.String()
}
