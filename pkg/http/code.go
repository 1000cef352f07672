// Copyright 2025 Molt Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

// Result pairs a business code with its default message.
type Result struct {
	Code int
	Msg  string
}

var (
	Success    = Result{Code: 0, Msg: "success"}
	Failed     = Result{Code: 1, Msg: "failed"}
	BadRequest = Result{Code: 400, Msg: "bad request"}
	NotFound   = Result{Code: 404, Msg: "not found"}

	RequestParameterParsingFailed = Result{Code: 4001, Msg: "request parameter parsing failed"}

	InternalServerError = Result{Code: 500, Msg: "internal server error"}
)
