package qimen

import (
	"fmt"

	"qimen-smart-go/internal/model"
)

// MockResult 在上游排盘 API 不可用时生成占位排盘结果。
// 四盘内容固定，基础信息中的公历时间按输入格式化为 "YYYY-MM-DD HH:MM"。
func MockResult(input model.QimenInput) *model.QimenResult {
	return &model.QimenResult{
		Tianpan: []string{"天蓬甲", "天芮乙", "天冲丙", "天辅丁", "天禽戊", "天心己", "天柱庚", "天任辛", "天英壬"},
		Dipan:   []string{"戊", "己", "庚", "辛", "壬", "癸", "丁", "丙", "乙"},
		Renpan:  []string{"休门", "死门", "伤门", "杜门", "开门", "惊门", "生门", "景门", "中宫"},
		Shenpan: []string{"值符", "腾蛇", "太阴", "六合", "白虎", "玄武", "九地", "九天", "无"},
		Analysis: "根据您提供的时间进行奇门遁甲排盘分析：\n\n" +
			"当前时局显示为模拟数据，实际使用时将调用真实API获取准确的排盘结果。\n\n" +
			"请注意这是开发测试版本，正式使用前请配置正确的API密钥。",
		Suggestions: []string{
			"这是模拟建议1：建议在吉时进行重要决策",
			"这是模拟建议2：注意避开不利的方位和时间",
			"这是模拟建议3：可以考虑佩戴相应的吉祥物品",
			"这是模拟建议4：保持积极的心态和行动",
		},
		BasicInfo: model.QimenBasicInfo{
			Gongli: fmt.Sprintf("%04d-%02d-%02d %02d:%02d",
				input.Year, input.Month, input.Day, input.Hours, input.Minute),
			Nongli: "农历时间（模拟）",
			Sizhu:  "四柱信息（模拟）",
			Zhifu:  "值符信息（模拟）",
			Zhishi: "值使信息（模拟）",
			Dunju:  "遁局信息（模拟）",
		},
		DetailedInfo: "这是模拟的详细信息，实际使用时将显示完整的奇门遁甲分析内容。",
	}
}
