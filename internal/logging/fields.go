package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FetchFields 描述一次缓存读取：远端地址、缓存相对路径与是否命中。
func FetchFields(url, rel string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"url":       url,
		"path":      rel,
		"cache_hit": cacheHit,
	}
}

// RequestFields 提供 collection/file/命中状态字段，供浏览接口的请求日志复用。
func RequestFields(requestID, collection, file string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"collection": collection,
		"file":       file,
		"cache_hit":  cacheHit,
	}
}
