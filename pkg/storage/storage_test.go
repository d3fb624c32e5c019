package storage

import (
	"strings"
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	key := ObjectKey("sup-1", "Guide.PDF", now)

	if !strings.HasPrefix(key, "documents/sup-1/2026/03/") {
		t.Errorf("对象键前缀不正确: %s", key)
	}
	if !strings.HasSuffix(key, ".pdf") {
		t.Errorf("扩展名应保留并转为小写: %s", key)
	}
}

func TestObjectKey_Unique(t *testing.T) {
	now := time.Now()
	if ObjectKey("s", "a.txt", now) == ObjectKey("s", "a.txt", now) {
		t.Error("同名文件应生成不同的对象键")
	}
}

func TestObjectKey_NoExtension(t *testing.T) {
	key := ObjectKey("s", "README", time.Now())
	if strings.Contains(key[strings.LastIndex(key, "/"):], ".") {
		t.Errorf("无扩展名的文件不应附加扩展名: %s", key)
	}
}
