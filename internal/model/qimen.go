// Package model 包含了应用的数据模型定义。
package model

// GongOrder 是九宫的固定顺序，四盘数组均按此下标对齐。
var GongOrder = [9]string{"坎", "艮", "震", "巽", "离", "坤", "兑", "乾", "中"}

// QimenInput 表示一次排盘请求的输入参数，提交后不再修改。
type QimenInput struct {
	Year         int    `json:"year" binding:"required"`
	Month        int    `json:"month" binding:"required"`
	Day          int    `json:"day" binding:"required"`
	Hours        int    `json:"hours"`
	Minute       int    `json:"minute"`
	Gender       string `json:"gender"`       // male / female
	QuestionType string `json:"questionType"` // general / career / relationship / health / study / 命盘
	Question     string `json:"question,omitempty"`
	JuModel      int    `json:"ju_model"`  // 起局方法 (0拆补法, 1置闰法, 2茅山道人法)
	PanModel     int    `json:"pan_model"` // 盘类型 (0飞盘奇门, 1转盘奇门)
	FeiPanModel  int    `json:"fei_pan_model,omitempty"`
	Zhen         int    `json:"zhen"` // 真太阳时 (1考虑, 2不考虑)
	Province     string `json:"province,omitempty"`
	City         string `json:"city,omitempty"`
}

// SizhuInfo 四柱信息。
type SizhuInfo struct {
	YearGan  string `json:"year_gan"`
	YearZhi  string `json:"year_zhi"`
	MonthGan string `json:"month_gan"`
	MonthZhi string `json:"month_zhi"`
	DayGan   string `json:"day_gan"`
	DayZhi   string `json:"day_zhi"`
	HourGan  string `json:"hour_gan"`
	HourZhi  string `json:"hour_zhi"`
}

// XunkongInfo 旬空信息。
type XunkongInfo struct {
	YearXunkong  string `json:"year_xunkong"`
	MonthXunkong string `json:"month_xunkong"`
	DayXunkong   string `json:"day_xunkong"`
	HourXunkong  string `json:"hour_xunkong"`
}

// ZhifuInfo 值符值使信息。
type ZhifuInfo struct {
	ZhifuName    string `json:"zhifu_name"`
	ZhifuLuogong string `json:"zhifu_luogong"`
	ZhishiName   string `json:"zhishi_name"`
	ZhishiLuogong string `json:"zhishi_luogong"`
}

// GongPan 单宫的四盘信息。
type GongPan struct {
	Shenpan struct {
		Bashen string `json:"bashen"`
	} `json:"shenpan"`
	Tianpan struct {
		Jiuxing    string `json:"jiuxing"`
		Sanqiliuyi string `json:"sanqiliuyi"`
	} `json:"tianpan"`
	Dipan struct {
		Sanqiliuyi string `json:"sanqiliuyi"`
	} `json:"dipan"`
	Renpan struct {
		Bamen string `json:"bamen"`
	} `json:"renpan"`
	Description struct {
		GongJu      string `json:"gong_ju"`
		LuoGongDesc string `json:"luo_gong_desc"`
	} `json:"description"`
}

// QimenData 上游排盘 API 响应中的 data 字段。
type QimenData struct {
	Gongli      string       `json:"gongli"`
	Nongli      string       `json:"nongli"`
	SizhuInfo   *SizhuInfo   `json:"sizhu_info"`
	XunkongInfo *XunkongInfo `json:"xunkong_info"`
	ZhifuInfo   *ZhifuInfo   `json:"zhifu_info"`
	Fushou      string       `json:"fushou"`
	Xunshou     string       `json:"xunshou"`
	Dunju       string       `json:"dunju"`
	Dingju      string       `json:"dingju"`
	Panlei      string       `json:"panlei"`
	JieqiPre    string       `json:"jieqi_pre"`
	JieqiNext   string       `json:"jieqi_next"`
	GongPan     []GongPan    `json:"gong_pan"`
}

// QimenAPIResponse 上游排盘 API 的完整响应，errcode=0 表示成功。
type QimenAPIResponse struct {
	Errcode int        `json:"errcode"`
	Errmsg  string     `json:"errmsg"`
	Notice  string     `json:"notice"`
	Data    *QimenData `json:"data"`
}

// QimenBasicInfo 排盘结果的基础信息摘要。
type QimenBasicInfo struct {
	Gongli string `json:"gongli"`
	Nongli string `json:"nongli"`
	Sizhu  string `json:"sizhu"`
	Zhifu  string `json:"zhifu"`
	Zhishi string `json:"zhishi"`
	Dunju  string `json:"dunju"`
}

// QimenResult 是归一化后的排盘结果，创建后不可变。
// 四个盘数组固定为 9 个元素，按 GongOrder 对齐。
type QimenResult struct {
	Tianpan      []string       `json:"tianpan"`
	Dipan        []string       `json:"dipan"`
	Renpan       []string       `json:"renpan"`
	Shenpan      []string       `json:"shenpan"`
	Analysis     string         `json:"analysis"`
	Suggestions  []string       `json:"suggestions"`
	BasicInfo    QimenBasicInfo `json:"basicInfo"`
	DetailedInfo string         `json:"detailedInfo"`
}

// QimenReport 把输入与结果绑定为一份报告。报告不可变，可被多个会话/档案引用。
type QimenReport struct {
	ID        string      `json:"id"`
	Input     QimenInput  `json:"input"`
	Result    QimenResult `json:"result"`
	Timestamp int64       `json:"timestamp"` // 创建时间，Unix 毫秒
}
