package service

import (
	"context"
	"errors"
	"io"
	"net/url"

	"qimen-smart-go/internal/model"
	"qimen-smart-go/pkg/llm"
	"qimen-smart-go/pkg/qimenapi"
)

// fakeQimenClient 是 qimenapi.Client 的测试替身。
type fakeQimenClient struct {
	resp *model.QimenAPIResponse
	err  error
}

func (f *fakeQimenClient) Forward(_ context.Context, _ url.Values) (*qimenapi.ForwardResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeQimenClient) Paipan(_ context.Context, _ model.QimenInput) (*model.QimenAPIResponse, error) {
	return f.resp, f.err
}

// validAPIResponse 构造一份带完整九宫的上游响应。
func validAPIResponse() *model.QimenAPIResponse {
	pans := make([]model.GongPan, 9)
	for i := range pans {
		pans[i].Shenpan.Bashen = "值符"
		pans[i].Tianpan.Jiuxing = "天蓬"
		pans[i].Tianpan.Sanqiliuyi = "甲"
		pans[i].Dipan.Sanqiliuyi = "戊"
		pans[i].Renpan.Bamen = "休门"
	}
	return &model.QimenAPIResponse{
		Data: &model.QimenData{
			Gongli:  "2024-06-15 09:30:00",
			Nongli:  "甲辰年五月初十",
			Dunju:   "阳遁三局",
			Dingju:  "芒种上元",
			GongPan: pans,
		},
	}
}

// fakeLLMClient 是 llm.Client 的测试替身，按预设的 chunk 序列回放流。
type fakeLLMClient struct {
	configured bool
	chunks     []string
	streamErr  error // 回放完 chunks 后返回
}

func (f *fakeLLMClient) Configured() bool { return f.configured }

func (f *fakeLLMClient) ChatCompletion(_ context.Context, _ []llm.Message, _ string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLMClient) RelayStream(_ context.Context, _ []llm.Message, _ string, _ io.Writer) error {
	return errors.New("not implemented")
}

func (f *fakeLLMClient) StreamChatMessages(_ context.Context, _ []llm.Message, _ *llm.GenerationParams, onDelta func(string) error) (string, error) {
	var full string
	for _, chunk := range f.chunks {
		full += chunk
		if onDelta != nil {
			if err := onDelta(chunk); err != nil {
				return full, err
			}
		}
	}
	return full, f.streamErr
}
