package netid

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
)

// arp -a выводит все известные соответствия IP — MAC,
// по строке вида "domain (ip) at mac_address ...".
var arpLineRe = regexp.MustCompile(`(?m)^.*? \(([0-9.]+)\) at ([0-9a-f:]{17})`)

// ARPTable — источник снимков, читающий системную ARP-таблицу
// через запуск утилиты arp.
type ARPTable struct {
	command string
}

// NewARPTable создаёт ARPTable с путём к утилите arp.
func NewARPTable(command string) *ARPTable {
	return &ARPTable{command: command}
}

// Snapshot запускает утилиту и парсит её вывод.
func (t *ARPTable) Snapshot(ctx context.Context) ([]Entry, error) {
	const op = "netid.Snapshot"
	out, err := exec.CommandContext(ctx, t.command, "-a").Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ParseARP(string(out)), nil
}

// ParseARP извлекает пары IP — MAC из вывода arp -a.
// Неполные записи ("at <incomplete>") пропускаются.
func ParseARP(output string) []Entry {
	var entries []Entry
	for _, match := range arpLineRe.FindAllStringSubmatch(output, -1) {
		entries = append(entries, Entry{IP: match[1], MAC: match[2]})
	}
	return entries
}
