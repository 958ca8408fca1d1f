package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dreamware/keypart/internal/config"
	"github.com/dreamware/keypart/internal/store"
)

// prepopulate seeds st before live traffic is admitted, per the
// load_requests_path / n_initial_keys configuration fields, and returns
// every key it wrote so the caller can register them with the scheduler's
// KeyMap (via Scheduler.Seed) before serving admission traffic — a
// pre-populated key exists in Storage but is otherwise unknown to routing
// until it is assigned a partition.
func prepopulate(st *store.Store, cfg config.Config) ([]int64, error) {
	switch {
	case cfg.LoadRequestsPath != "":
		return loadRequestsFile(st, cfg.LoadRequestsPath)
	case cfg.NInitialKeys > 0:
		keys := make([]int64, cfg.NInitialKeys)
		for k := 0; k < cfg.NInitialKeys; k++ {
			keys[k] = int64(k)
			st.Write(int64(k), store.DefaultTemplate)
		}
		return keys, nil
	default:
		return nil, nil
	}
}

// loadRequestsFile reads "<key> <value>" pairs, one per line, blank lines
// and lines starting with # ignored.
func loadRequestsFile(st *store.Store, path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var keys []int64
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.SplitN(text, " ", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:%d: expected '<key> <value>', got %q", path, line, text)
		}
		key, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid key %q: %w", path, line, fields[0], err)
		}
		st.Write(key, []byte(fields[1]))
		keys = append(keys, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
