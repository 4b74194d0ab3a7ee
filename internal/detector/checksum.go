// 校验和验证器
// Aadhaar使用Verhoeff校验，巴西CPF使用双校验位，正则命中后还需通过校验才算检出
package detector

// verhoeffMult Verhoeff乘法表 d(j,k)
var verhoeffMult = [10][10]int{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	{1, 2, 3, 4, 0, 6, 7, 8, 9, 5},
	{2, 3, 4, 0, 1, 7, 8, 9, 5, 6},
	{3, 4, 0, 1, 2, 8, 9, 5, 6, 7},
	{4, 0, 1, 2, 3, 9, 5, 6, 7, 8},
	{5, 9, 8, 7, 6, 0, 4, 3, 2, 1},
	{6, 5, 9, 8, 7, 1, 0, 4, 3, 2},
	{7, 6, 5, 9, 8, 2, 1, 0, 4, 3},
	{8, 7, 6, 5, 9, 3, 2, 1, 0, 4},
	{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
}

// verhoeffPerm Verhoeff置换表 p(pos,num)
var verhoeffPerm = [8][10]int{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	{1, 5, 7, 6, 2, 8, 3, 0, 9, 4},
	{5, 8, 0, 3, 7, 9, 6, 1, 4, 2},
	{8, 9, 1, 6, 0, 4, 3, 5, 2, 7},
	{9, 4, 5, 3, 1, 2, 6, 8, 7, 0},
	{4, 2, 8, 6, 5, 7, 3, 9, 0, 1},
	{2, 7, 9, 3, 8, 0, 6, 4, 1, 5},
	{7, 0, 4, 6, 9, 1, 3, 2, 5, 8},
}

// digitsOf 抽取字符串中的数字位，遇到非分隔符的异常字符返回nil
// 允许的分隔符: 空格、点、横线
func digitsOf(s string) []int {
	digits := make([]int, 0, len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == ' ' || r == '.' || r == '-':
			// 分隔符跳过
		default:
			return nil
		}
	}
	return digits
}

// verhoeffValid Verhoeff校验
// 从右往左处理数字位，校验和收敛到0为合法
func verhoeffValid(s string) bool {
	digits := digitsOf(s)
	if len(digits) == 0 {
		return false
	}

	c := 0
	for i := 0; i < len(digits); i++ {
		d := digits[len(digits)-1-i]
		c = verhoeffMult[c][verhoeffPerm[i%8][d]]
	}
	return c == 0
}

// aadharValid Aadhaar号码校验 [12位数字 + Verhoeff校验位]
func aadharValid(s string) bool {
	digits := digitsOf(s)
	if len(digits) != 12 {
		return false
	}
	// Aadhaar首位不为0或1
	if digits[0] == 0 || digits[0] == 1 {
		return false
	}
	return verhoeffValid(s)
}

// cpfVerifierDigit 计算CPF校验位
// 对前len位digits按权重(len+1..2)加权求和，(sum*10)%11%10 为校验位
func cpfVerifierDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	return sum * 10 % 11 % 10
}

// cpfValid 巴西CPF校验 [11位数字，第10、11位为校验位]
func cpfValid(s string) bool {
	digits := digitsOf(s)
	if len(digits) != 11 {
		return false
	}

	// 全同数字是形式合法但无意义的号码
	allSame := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	if cpfVerifierDigit(digits[:9]) != digits[9] {
		return false
	}
	return cpfVerifierDigit(digits[:10]) == digits[10]
}

// ssnValid 美国社保号校验 [排除非法号段]
// 区域号000/666/9xx、组号00、序列号0000均为非法
func ssnValid(s string) bool {
	digits := digitsOf(s)
	if len(digits) != 9 {
		return false
	}

	area := digits[0]*100 + digits[1]*10 + digits[2]
	if area == 0 || area == 666 || area >= 900 {
		return false
	}
	if digits[3] == 0 && digits[4] == 0 {
		return false
	}
	if digits[5] == 0 && digits[6] == 0 && digits[7] == 0 && digits[8] == 0 {
		return false
	}
	return true
}
