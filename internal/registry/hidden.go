package registry

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// HiddenSet 被隐藏（不参与聚合）的 feed 集合，持久化方式由实现决定
type HiddenSet interface {
	Hidden(ctx context.Context) (map[string]struct{}, error)
	Hide(ctx context.Context, url string) error
	Unhide(ctx context.Context, url string) error
}

// FileHiddenStore 每行一个 URL 的文本文件
type FileHiddenStore struct {
	path string
	mu   sync.Mutex
}

func NewFileHiddenStore(path string) *FileHiddenStore {
	return &FileHiddenStore{path: path}
}

func (s *FileHiddenStore) Hidden(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileHiddenStore) Hide(ctx context.Context, url string) error {
	return s.update(func(set map[string]struct{}) { set[strings.TrimSpace(url)] = struct{}{} })
}

func (s *FileHiddenStore) Unhide(ctx context.Context, url string) error {
	return s.update(func(set map[string]struct{}) { delete(set, strings.TrimSpace(url)) })
}

func (s *FileHiddenStore) update(fn func(map[string]struct{})) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.load()
	if err != nil {
		return err
	}
	fn(set)
	return s.save(set)
}

// load 文件不存在视为空集合；空行与 # 注释行忽略
func (s *FileHiddenStore) load() (map[string]struct{}, error) {
	set := make(map[string]struct{})
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, oops.In("registry").With("path", s.path).Wrap(err)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, oops.In("registry").With("path", s.path).Wrap(err)
	}
	return set, nil
}

// save 先写临时文件再 rename，避免写到一半被读到
func (s *FileHiddenStore) save(set map[string]struct{}) error {
	urls := make([]string, 0, len(set))
	for u := range set {
		if u != "" {
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)

	var buf bytes.Buffer
	for _, u := range urls {
		buf.WriteString(u)
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return oops.In("registry").With("path", s.path).Wrap(err)
	}
	tmp, err := os.CreateTemp(dir, ".hidden-*")
	if err != nil {
		return oops.In("registry").With("path", s.path).Wrap(err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return oops.In("registry").With("path", s.path).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return oops.In("registry").With("path", s.path).Wrap(err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return oops.In("registry").With("path", s.path).Wrap(err)
	}
	return nil
}
