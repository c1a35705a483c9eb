// Package diagnostics gathers a broad read-only snapshot of host state into a
// timestamped log file, so the planning model can reference recent evidence
// before the interactive agent starts. Each command runs independently; no
// persistent shell session is involved.
package diagnostics

import (
	"os"
	"os/exec"
)

// Probe is one catalog entry: a shell command and what it reports.
type Probe struct {
	Command     string
	Description string
}

// Section groups probes that cover one area of the host.
type Section struct {
	Name   string
	Probes []Probe
}

// hostCapabilities reports which optional tool families are present, so the
// catalog stays safe to run on minimal distributions.
type hostCapabilities struct {
	systemctl bool
	docker    bool
	podman    bool
	kubectl   bool
}

func detectCapabilities() hostCapabilities {
	return hostCapabilities{
		systemctl: hasBinary("systemctl") && pathExists("/run/systemd/system"),
		docker:    hasBinary("docker"),
		podman:    hasBinary("podman"),
		kubectl:   hasBinary("kubectl"),
	}
}

func hasBinary(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// BuildCatalog assembles the ordered section list for the current host.
func BuildCatalog() []Section {
	caps := detectCapabilities()
	return []Section{
		{Name: "system", Probes: systemProbes()},
		{Name: "packages", Probes: packageProbes()},
		{Name: "network", Probes: networkProbes()},
		{Name: "services", Probes: serviceProbes(caps)},
		{Name: "containers", Probes: containerProbes(caps)},
	}
}

// SectionNames lists the catalog section names in order.
func SectionNames() []string {
	names := make([]string, 0, 5)
	for _, section := range BuildCatalog() {
		names = append(names, section.Name)
	}
	return names
}

func systemProbes() []Probe {
	return []Probe{
		{Command: "uname -a", Description: "Kernel and architecture"},
		{Command: "cat /etc/os-release", Description: "Distribution release info"},
		{Command: "uptime", Description: "System uptime/load"},
		{Command: "date", Description: "Current time"},
		{Command: "who -a", Description: "Logged-in users"},
		{Command: "id", Description: "Current user identity"},
		{Command: "df -h", Description: "Disk usage"},
		{Command: "free -h", Description: "Memory usage"},
		{Command: "ps aux --sort=-%cpu | head -n 20", Description: "Top processes by CPU"},
		{Command: "ps aux --sort=-%mem | head -n 20", Description: "Top processes by memory"},
		{Command: "journalctl -p err -n 200", Description: "Last 200 error-level journal entries"},
		{Command: "dmesg | tail -n 200", Description: "Kernel ring buffer tail"},
	}
}

func packageProbes() []Probe {
	return []Probe{
		{Command: "which apt", Description: "Apt availability"},
		{Command: "apt-cache policy", Description: "Apt policy"},
		{Command: "apt-get -s upgrade", Description: "Apt upgrade simulation"},
		{Command: "which yum", Description: "Yum availability"},
		{Command: "yum check-update", Description: "Yum updates"},
		{Command: "which dnf", Description: "Dnf availability"},
		{Command: "dnf check-update", Description: "Dnf updates"},
		{Command: "which pacman", Description: "Pacman availability"},
		{Command: "pacman -Qu", Description: "Pacman pending upgrades"},
		{Command: "which apk", Description: "APK availability"},
		{Command: "apk version", Description: "APK version info"},
	}
}

func networkProbes() []Probe {
	return []Probe{
		{Command: "ip address", Description: "Network interfaces"},
		{Command: "ip route", Description: "Routing table"},
		{Command: "ss -tulpn", Description: "Listening sockets"},
		{Command: "resolvectl status", Description: "Resolver configuration"},
		{Command: "cat /etc/resolv.conf", Description: "Resolver fallback"},
		{Command: "ping -c 4 8.8.8.8", Description: "Ping external DNS (8.8.8.8)"},
		{Command: "ping -c 4 1.1.1.1", Description: "Ping external DNS (1.1.1.1)"},
		{Command: "ping -c 4 localhost", Description: "Ping localhost"},
		{Command: "traceroute 8.8.8.8", Description: "Traceroute to 8.8.8.8"},
		{Command: "systemd-resolve --statistics", Description: "systemd-resolved stats"},
	}
}

func serviceProbes(caps hostCapabilities) []Probe {
	if !caps.systemctl {
		return []Probe{
			{Command: "service --status-all", Description: "SysV service status"},
		}
	}
	return []Probe{
		{Command: "systemctl status", Description: "Systemd overall status"},
		{Command: "systemctl list-units --type=service --state=failed", Description: "Failed services"},
		{Command: "systemctl list-timers", Description: "Active timers"},
		{Command: "systemctl list-sockets", Description: "Listening sockets via systemd"},
		{Command: "loginctl list-sessions", Description: "Active sessions"},
	}
}

func containerProbes(caps hostCapabilities) []Probe {
	probes := []Probe{}
	if caps.docker {
		probes = append(probes,
			Probe{Command: "docker info", Description: "Docker daemon info"},
			Probe{Command: "docker ps -a", Description: "Docker containers"},
			Probe{Command: "docker images", Description: "Docker images"},
			Probe{Command: "docker network ls", Description: "Docker networks"},
			Probe{Command: "docker volume ls", Description: "Docker volumes"},
		)
	}
	if caps.podman {
		probes = append(probes,
			Probe{Command: "podman info", Description: "Podman info"},
			Probe{Command: "podman ps -a", Description: "Podman containers"},
		)
	}
	if caps.kubectl {
		probes = append(probes,
			Probe{Command: "kubectl config get-contexts", Description: "Kubectl contexts"},
			Probe{Command: "kubectl get nodes -o wide", Description: "Kubernetes nodes"},
			Probe{Command: "kubectl get pods --all-namespaces", Description: "Kubernetes pods"},
		)
	}
	return probes
}
