package qidian

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookURL(t *testing.T) {
	assert.Equal(t, "https://www.qidian.com/book/1035420986/", BookURL(BaseURL, "1035420986"))
	assert.Equal(t, "http://127.0.0.1:8080/book/1/", BookURL("http://127.0.0.1:8080/", "1"))
}

func TestChapterPageURL(t *testing.T) {
	assert.Equal(t, "https://www.qidian.com/chapter/1035420986/777/", ChapterPageURL(BaseURL, "1035420986", "777"))
}
