package snapshot

import (
	"fmt"
	"strconv"
	"strings"
)

// IndexToLetter 0 基列索引转列字母 (0→A, 25→Z, 26→AA, 701→ZZ)
//
// 与 LetterToIndex 互为双射；该原语被映射、生成器、定价器共用。
func IndexToLetter(index int) string {
	if index < 0 {
		return ""
	}
	letter := ""
	n := index + 1
	for n > 0 {
		n--
		letter = string(rune('A'+n%26)) + letter
		n /= 26
	}
	return letter
}

// LetterToIndex 列字母转 0 基列索引
func LetterToIndex(letter string) (int, error) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		return 0, fmt.Errorf("empty column letter")
	}
	index := 0
	for _, r := range letter {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column letter: %q", letter)
		}
		index = index*26 + int(r-'A') + 1
	}
	return index - 1, nil
}

// CellAddress 组合列字母和 1 基行号为单元格地址
func CellAddress(column string, row int) string {
	return fmt.Sprintf("%s%d", strings.ToUpper(strings.TrimSpace(column)), row)
}

// SplitCellAddress 拆分单元格地址为列字母和 1 基行号
func SplitCellAddress(addr string) (column string, row int, err error) {
	addr = strings.ToUpper(strings.TrimSpace(addr))
	i := 0
	for i < len(addr) && addr[i] >= 'A' && addr[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(addr) {
		return "", 0, fmt.Errorf("invalid cell address: %q", addr)
	}
	row, err = strconv.Atoi(addr[i:])
	if err != nil || row < 1 {
		return "", 0, fmt.Errorf("invalid cell address: %q", addr)
	}
	return addr[:i], row, nil
}
